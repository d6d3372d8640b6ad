package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// MJPEGDevice reads frames from a multipart/x-mixed-replace stream served by
// a local camera daemon (kiosk webcams, IP cameras).
type MJPEGDevice struct {
	streamURL  string
	httpClient *http.Client
}

func NewMJPEGDevice(streamURL string, httpClient *http.Client) *MJPEGDevice {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &MJPEGDevice{streamURL: streamURL, httpClient: httpClient}
}

func (d *MJPEGDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	u, err := url.Parse(d.streamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid stream url: %w", err)
	}
	q := u.Query()
	if c.Facing != "" {
		q.Set("facing", string(c.Facing))
	}
	if c.IdealWidth > 0 {
		q.Set("width", strconv.Itoa(c.IdealWidth))
	}
	if c.IdealHeight > 0 {
		q.Set("height", strconv.Itoa(c.IdealHeight))
	}
	u.RawQuery = q.Encode()

	// The stream outlives the request that opened it, so it gets its own
	// context and is torn down by Close.
	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("failed to open stream: status %d, body: %s", resp.StatusCode, string(body))
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("unexpected stream content type %q", resp.Header.Get("Content-Type"))
	}

	s := &mjpegStream{
		body:   resp.Body,
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.read(multipart.NewReader(resp.Body, params["boundary"]))

	// Wait for the first frame so a dead camera fails at open time.
	select {
	case <-s.ready:
	case <-s.done:
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}
	if _, err := s.latestFrame(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

type mjpegStream struct {
	body   io.ReadCloser
	cancel context.CancelFunc

	mu      sync.Mutex
	latest  image.Image
	readErr error

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

// read keeps decoding parts so Frame always returns the most recent one.
func (s *mjpegStream) read(mr *multipart.Reader) {
	defer close(s.done)
	for {
		part, err := mr.NextPart()
		if err != nil {
			s.fail(err)
			return
		}
		img, err := jpeg.Decode(part)
		part.Close()
		if err != nil {
			continue
		}
		s.mu.Lock()
		s.latest = img
		s.mu.Unlock()
		s.readyOnce.Do(func() { close(s.ready) })
	}
}

func (s *mjpegStream) fail(err error) {
	s.mu.Lock()
	if s.readErr == nil {
		s.readErr = err
	}
	s.mu.Unlock()
}

func (s *mjpegStream) latestFrame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil {
		return s.latest, nil
	}
	if s.readErr != nil {
		return nil, fmt.Errorf("stream ended before first frame: %w", s.readErr)
	}
	return nil, errors.New("no frame received")
}

func (s *mjpegStream) Frame(ctx context.Context) (image.Image, error) {
	select {
	case <-s.ready:
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.latestFrame()
}

func (s *mjpegStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.body.Close()
		<-s.done
	})
	return err
}
