package camera

import (
	"context"
	"errors"
	"image"
)

// ============================================================
// DEVICE ABSTRACTION
// ============================================================

var (
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrNoActiveStream     = errors.New("no active stream")
)

// Constraints are hints for picking and configuring a video device.
type Constraints struct {
	DeviceID    int
	FacingMode  string
	IdealWidth  int
	IdealHeight int
}

// Stream is an open video device.
type Stream interface {
	ReadFrame() (image.Image, error)
	Close() error
}

// JPEGStream is implemented by streams that can encode the current frame
// natively, skipping the image.Image round trip.
type JPEGStream interface {
	CaptureJPEG(quality int) (data []byte, size image.Point, err error)
}

// Device opens streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}
