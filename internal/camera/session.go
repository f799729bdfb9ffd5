package camera

import (
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"math"
	"sync"
	"time"

	"attendance-kiosk/models"
)

// ============================================================
// CAPTURE SESSION - one stream per surface
// ============================================================

// Session owns the stream of a single surface. All methods are safe for
// concurrent use; device operations on one surface are serialized.
type Session struct {
	surface     models.Surface
	device      Device
	constraints Constraints
	quality     int
	pool        *bufferPool
	onChange    func(surface models.Surface, active bool)

	mu     sync.Mutex
	stream Stream
}

func newSession(surface models.Surface, device Device, cfg models.SurfaceConfig, pool *bufferPool) *Session {
	return &Session{
		surface: surface,
		device:  device,
		constraints: Constraints{
			DeviceID:    cfg.DeviceID,
			FacingMode:  cfg.FacingMode,
			IdealWidth:  cfg.IdealWidth,
			IdealHeight: cfg.IdealHeight,
		},
		quality: JPEGQuality(cfg.Quality),
		pool:    pool,
	}
}

// JPEGQuality maps a 0..1 quality to the 1..100 scale of image/jpeg.
func JPEGQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

func (s *Session) Surface() models.Surface { return s.surface }

// Quality returns the JPEG quality used by Capture.
func (s *Session) Quality() int { return s.quality }

// Active reports whether the surface currently holds a stream.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Acquire opens the device for this surface. Calling it while a stream is
// already held opens nothing and returns alreadyActive=true.
func (s *Session) Acquire(ctx context.Context) (alreadyActive bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		log.Printf("📷 [%s] Camera already active", s.surface)
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	log.Printf("📷 [%s] Opening camera %d (%dx%d, facing=%s)...",
		s.surface, s.constraints.DeviceID, s.constraints.IdealWidth, s.constraints.IdealHeight, s.constraints.FacingMode)

	stream, err := s.device.Open(ctx, s.constraints)
	if err != nil {
		log.Printf("❌ [%s] Camera error: %v", s.surface, err)
		return false, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	s.stream = stream
	s.notify(true)
	log.Printf("✅ [%s] Camera ready", s.surface)
	return false, nil
}

// Capture encodes the current frame as JPEG at the surface quality.
func (s *Session) Capture(ctx context.Context) (*models.CapturedPhoto, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil, ErrNoActiveStream
	}

	if native, ok := s.stream.(JPEGStream); ok {
		data, size, err := native.CaptureJPEG(s.quality)
		if err == nil {
			return s.photo(data, size.X, size.Y), nil
		}
		log.Printf("⚠️  [%s] Native encode failed, falling back: %v", s.surface, err)
	}

	img, err := s.stream.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}

	buf := s.pool.Get()
	defer s.pool.Put(buf)

	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}

	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())

	b := img.Bounds()
	return s.photo(data, b.Dx(), b.Dy()), nil
}

func (s *Session) photo(data []byte, w, h int) *models.CapturedPhoto {
	log.Printf("📸 [%s] Captured %dx%d, %.1fKB (quality: %d)",
		s.surface, w, h, float64(len(data))/1024.0, s.quality)
	return &models.CapturedPhoto{
		Surface:   s.surface,
		Image:     data,
		Width:     w,
		Height:    h,
		CreatedAt: time.Now(),
	}
}

// Release stops the device. It is a no-op when nothing is active.
func (s *Session) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}

	err := s.stream.Close()
	s.stream = nil
	s.notify(false)
	log.Printf("🛑 [%s] Camera released", s.surface)
	return err
}

func (s *Session) notify(active bool) {
	if s.onChange != nil {
		s.onChange(s.surface, active)
	}
}
