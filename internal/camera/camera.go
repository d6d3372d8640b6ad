package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"smile-preview-backend/internal/photo"
)

// ErrCancelled is returned by Capture when the operator aborts. It is not a
// failure and callers should treat it as "no photo".
var ErrCancelled = errors.New("camera: capture cancelled")

// ErrUnavailable is returned when no camera device is configured.
var ErrUnavailable = errors.New("camera: no device configured")

type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

type Constraints struct {
	Facing      Facing
	IdealWidth  int
	IdealHeight int
}

// Stream is an open camera. Close releases the hardware and must be called
// exactly once by whoever opened it.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// WithCamera opens dev, runs fn with the stream and always closes it,
// whichever way fn returns.
func WithCamera(ctx context.Context, dev Device, c Constraints, fn func(Stream) error) (err error) {
	if dev == nil {
		return ErrUnavailable
	}
	stream, err := dev.Open(ctx, c)
	if err != nil {
		return fmt.Errorf("camera: open stream: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("camera: close stream: %w", cerr)
		}
	}()
	return fn(stream)
}

type Decision int

const (
	Confirm Decision = iota + 1
	Cancel
)

// Awaiter blocks until the operator confirms or cancels.
type Awaiter interface {
	Await(ctx context.Context) (Decision, error)
}

// Prompt is an Awaiter resolved from another goroutine, typically an HTTP
// handler acting for the operator. Only the first decision counts.
type Prompt struct {
	decisions chan Decision
	once      sync.Once
}

func NewPrompt() *Prompt {
	return &Prompt{decisions: make(chan Decision, 1)}
}

// Resolve records d and reports whether it was the first decision.
func (p *Prompt) Resolve(d Decision) bool {
	accepted := false
	p.once.Do(func() {
		p.decisions <- d
		accepted = true
	})
	return accepted
}

func (p *Prompt) Await(ctx context.Context) (Decision, error) {
	select {
	case d := <-p.decisions:
		return d, nil
	case <-ctx.Done():
		return Cancel, ctx.Err()
	}
}

// Capture opens the front camera, waits for the operator and turns the
// current frame into a normalized square photo. The stream is released on
// confirm, cancel, timeout and error alike.
func Capture(ctx context.Context, dev Device, edge int, prompt Awaiter) (*photo.Asset, error) {
	var asset *photo.Asset
	constraints := Constraints{Facing: FacingUser, IdealWidth: edge, IdealHeight: edge}

	err := WithCamera(ctx, dev, constraints, func(s Stream) error {
		decision, err := prompt.Await(ctx)
		if err != nil {
			return fmt.Errorf("camera: await operator: %w", err)
		}
		if decision != Confirm {
			return ErrCancelled
		}

		frame, err := s.Frame(ctx)
		if err != nil {
			return fmt.Errorf("camera: read frame: %w", err)
		}

		asset, err = photo.NormalizeImage(frame, edge, photo.OriginCamera)
		return err
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}
