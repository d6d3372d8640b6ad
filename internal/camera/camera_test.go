package camera_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smile-preview-backend/internal/camera"
	"smile-preview-backend/internal/photo"
)

type fakeStream struct {
	frame  image.Image
	closed *int32
}

func (s *fakeStream) Frame(ctx context.Context) (image.Image, error) { return s.frame, nil }

func (s *fakeStream) Close() error {
	atomic.AddInt32(s.closed, 1)
	return nil
}

type fakeDevice struct {
	closed int32
	opened int32
	last   camera.Constraints
}

func (d *fakeDevice) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	atomic.AddInt32(&d.opened, 1)
	d.last = c
	return &fakeStream{frame: image.NewRGBA(image.Rect(0, 0, 640, 480)), closed: &d.closed}, nil
}

func TestCapture_ConfirmProducesSquarePhotoAndReleasesCamera(t *testing.T) {
	dev := &fakeDevice{}
	prompt := camera.NewPrompt()
	require.True(t, prompt.Resolve(camera.Confirm))

	asset, err := camera.Capture(context.Background(), dev, 256, prompt)
	require.NoError(t, err)

	assert.Equal(t, photo.OriginCamera, asset.Origin)
	assert.Equal(t, 256, asset.EdgeLength)
	assert.Equal(t, 640, asset.SourceWidth)
	assert.Equal(t, camera.FacingUser, dev.last.Facing)
	assert.Equal(t, int32(1), atomic.LoadInt32(&dev.closed))
}

func TestCapture_CancelReturnsErrCancelledAndReleasesCamera(t *testing.T) {
	dev := &fakeDevice{}
	prompt := camera.NewPrompt()
	prompt.Resolve(camera.Cancel)

	asset, err := camera.Capture(context.Background(), dev, 256, prompt)
	assert.Nil(t, asset)
	assert.ErrorIs(t, err, camera.ErrCancelled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&dev.closed))
}

func TestCapture_TimeoutReleasesCamera(t *testing.T) {
	dev := &fakeDevice{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := camera.Capture(ctx, dev, 256, camera.NewPrompt())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&dev.closed))
}

func TestCapture_NoDevice(t *testing.T) {
	_, err := camera.Capture(context.Background(), nil, 256, camera.NewPrompt())
	assert.ErrorIs(t, err, camera.ErrUnavailable)
}

func TestPrompt_OnlyFirstDecisionCounts(t *testing.T) {
	p := camera.NewPrompt()
	assert.True(t, p.Resolve(camera.Cancel))
	assert.False(t, p.Resolve(camera.Confirm))

	d, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, camera.Cancel, d)
}

func TestWithCamera_ClosesOnCallbackError(t *testing.T) {
	dev := &fakeDevice{}
	boom := errors.New("boom")

	err := camera.WithCamera(context.Background(), dev, camera.Constraints{}, func(camera.Stream) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), atomic.LoadInt32(&dev.closed))
}

func mjpegServer(t *testing.T, frames int) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(1, 1, color.Black)
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	frame := buf.Bytes()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user", r.URL.Query().Get("facing"))
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		flusher := w.(http.Flusher)
		for i := 0; i < frames; i++ {
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
			w.Write(frame)
			fmt.Fprint(w, "\r\n")
			flusher.Flush()
		}
		<-r.Context().Done()
	}))
}

func TestMJPEGDevice_ReadsLatestFrame(t *testing.T) {
	server := mjpegServer(t, 2)
	defer server.Close()

	dev := camera.NewMJPEGDevice(server.URL+"/stream", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := dev.Open(ctx, camera.Constraints{Facing: camera.FacingUser, IdealWidth: 64, IdealHeight: 48})
	require.NoError(t, err)

	frame, err := stream.Frame(ctx)
	require.NoError(t, err)
	assert.Equal(t, 64, frame.Bounds().Dx())
	assert.Equal(t, 48, frame.Bounds().Dy())

	require.NoError(t, stream.Close())
	assert.NoError(t, stream.Close(), "second close is a no-op")
}

func TestMJPEGDevice_RejectsNonMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("nope"))
	}))
	defer server.Close()

	_, err := camera.NewMJPEGDevice(server.URL, nil).Open(context.Background(), camera.Constraints{Facing: camera.FacingUser})
	assert.Error(t, err)
}
