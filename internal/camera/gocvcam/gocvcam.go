// Package gocvcam opens local video devices through OpenCV.
package gocvcam

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"

	"attendance-kiosk/internal/camera"

	"gocv.io/x/gocv"
)

// warmupFrames are read and dropped after opening; many webcams return
// dark frames while auto exposure settles.
const warmupFrames = 3

type Device struct{}

func New() *Device {
	return &Device{}
}

// Open starts capture on c.DeviceID. Facing mode has no OpenCV equivalent;
// the device id alone selects the camera.
func (d *Device) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	capture, err := gocv.OpenVideoCapture(c.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("open device %d: %w", c.DeviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("device %d not opened", c.DeviceID)
	}

	if c.IdealWidth > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.IdealWidth))
	}
	if c.IdealHeight > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.IdealHeight))
	}

	s := &stream{capture: capture, mat: gocv.NewMat()}

	for i := 0; i < warmupFrames; i++ {
		if err := ctx.Err(); err != nil {
			s.Close()
			return nil, err
		}
		if ok := capture.Read(&s.mat); !ok || s.mat.Empty() {
			s.Close()
			return nil, fmt.Errorf("device %d produced no frame", c.DeviceID)
		}
	}

	log.Printf("   📐 Device %d native size: %dx%d", c.DeviceID, s.mat.Cols(), s.mat.Rows())
	return s, nil
}

// ============================================================
// STREAM
// ============================================================

type stream struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

func (s *stream) read() error {
	if ok := s.capture.Read(&s.mat); !ok {
		return fmt.Errorf("read failed")
	}
	if s.mat.Empty() {
		return fmt.Errorf("empty frame")
	}
	return nil
}

func (s *stream) ReadFrame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.read(); err != nil {
		return nil, err
	}
	return s.mat.ToImage()
}

// CaptureJPEG encodes the frame at native resolution inside OpenCV.
func (s *stream) CaptureJPEG(quality int) ([]byte, image.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.read(); err != nil {
		return nil, image.Point{}, err
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.mat, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("IMEncode failed: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, image.Pt(s.mat.Cols(), s.mat.Rows()), nil
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mat.Close()
	return s.capture.Close()
}
