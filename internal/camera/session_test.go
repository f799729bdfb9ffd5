package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"attendance-kiosk/models"
)

type fakeStream struct {
	img    image.Image
	closed atomic.Bool
}

func (s *fakeStream) ReadFrame() (image.Image, error) {
	if s.closed.Load() {
		return nil, errors.New("closed")
	}
	return s.img, nil
}

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeDevice struct {
	mu      sync.Mutex
	opens   int
	fail    error
	delay   time.Duration
	streams []*fakeStream
}

func (d *fakeDevice) Open(_ context.Context, c Constraints) (Stream, error) {
	time.Sleep(d.delay)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.fail != nil {
		return nil, d.fail
	}
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	s := &fakeStream{img: img}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

func testCameraConfig() models.CameraConfig {
	return models.CameraConfig{
		Person:     models.SurfaceConfig{DeviceID: 0, FacingMode: "user", IdealWidth: 1280, IdealHeight: 720, Quality: 0.90},
		Attendance: models.SurfaceConfig{DeviceID: 1, FacingMode: "user", IdealWidth: 1920, IdealHeight: 1080, Quality: 0.95},
	}
}

func TestAcquireIsIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	s := NewManager(dev, testCameraConfig()).Session(models.SurfacePerson)

	already, err := s.Acquire(context.Background())
	if err != nil || already {
		t.Fatalf("first acquire: already=%v err=%v", already, err)
	}
	already, err = s.Acquire(context.Background())
	if err != nil || !already {
		t.Fatalf("second acquire: already=%v err=%v", already, err)
	}
	if dev.openCount() != 1 {
		t.Errorf("expected one device handle, got %d", dev.openCount())
	}
}

func TestConcurrentAcquireOpensOnce(t *testing.T) {
	dev := &fakeDevice{delay: 10 * time.Millisecond}
	m := NewManager(dev, testCameraConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Session(models.SurfaceAttendance).Acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
			}
		}()
	}
	wg.Wait()

	if dev.openCount() != 1 {
		t.Errorf("expected one device handle, got %d", dev.openCount())
	}
}

func TestAcquireFailure(t *testing.T) {
	dev := &fakeDevice{fail: errors.New("permission denied")}
	s := NewManager(dev, testCameraConfig()).Session(models.SurfaceAttendance)

	_, err := s.Acquire(context.Background())
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
	if s.Active() {
		t.Error("session must stay inactive after a failed acquire")
	}
}

func TestCaptureRequiresStream(t *testing.T) {
	s := NewManager(&fakeDevice{}, testCameraConfig()).Session(models.SurfacePerson)
	if _, err := s.Capture(context.Background()); !errors.Is(err, ErrNoActiveStream) {
		t.Fatalf("expected ErrNoActiveStream, got %v", err)
	}
}

func TestCaptureEncodesJPEG(t *testing.T) {
	s := NewManager(&fakeDevice{}, testCameraConfig()).Session(models.SurfacePerson)
	if _, err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	photo, err := s.Capture(context.Background())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if photo.Surface != models.SurfacePerson {
		t.Errorf("unexpected surface %s", photo.Surface)
	}
	if photo.Width != 64 || photo.Height != 48 {
		t.Errorf("expected native 64x48, got %dx%d", photo.Width, photo.Height)
	}

	img, err := jpeg.Decode(bytes.NewReader(photo.Image))
	if err != nil {
		t.Fatalf("payload is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("decoded size %v", img.Bounds())
	}
}

func TestSurfaceQuality(t *testing.T) {
	m := NewManager(&fakeDevice{}, testCameraConfig())
	if q := m.Session(models.SurfacePerson).Quality(); q != 90 {
		t.Errorf("enrollment quality = %d, want 90", q)
	}
	if q := m.Session(models.SurfaceAttendance).Quality(); q != 95 {
		t.Errorf("attendance quality = %d, want 95", q)
	}
}

func TestJPEGQualityClamp(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 1},
		{0.5, 50},
		{0.956, 96},
		{1.2, 100},
	}
	for _, tt := range tests {
		if got := JPEGQuality(tt.in); got != tt.want {
			t.Errorf("JPEGQuality(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestReleaseAndReacquire(t *testing.T) {
	dev := &fakeDevice{}
	m := NewManager(dev, testCameraConfig())

	var changes []bool
	m.SetObserver(func(_ models.Surface, active bool) { changes = append(changes, active) })
	s := m.Session(models.SurfacePerson)

	if err := s.Release(); err != nil {
		t.Fatalf("release on inactive session: %v", err)
	}
	if _, err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if s.Active() {
		t.Error("expected inactive after release")
	}
	if !dev.streams[0].closed.Load() {
		t.Error("device stream was not closed")
	}
	if _, err := s.Capture(context.Background()); !errors.Is(err, ErrNoActiveStream) {
		t.Errorf("capture after release: %v", err)
	}
	if _, err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if dev.openCount() != 2 {
		t.Errorf("expected 2 opens, got %d", dev.openCount())
	}
	if len(changes) != 3 || !changes[0] || changes[1] || !changes[2] {
		t.Errorf("unexpected activation changes %v", changes)
	}
}

func TestManagerReturnsOneSessionPerSurface(t *testing.T) {
	m := NewManager(&fakeDevice{}, testCameraConfig())
	if m.Session(models.SurfacePerson) != m.Session(models.SurfacePerson) {
		t.Error("expected the same session for the same surface")
	}
	if m.Session(models.SurfacePerson) == m.Session(models.SurfaceAttendance) {
		t.Error("surfaces must not share a session")
	}

	for _, surface := range []models.Surface{models.SurfacePerson, models.SurfaceAttendance} {
		if _, err := m.Session(surface).Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %s: %v", surface, err)
		}
	}
	m.ReleaseAll()
	if m.Session(models.SurfacePerson).Active() || m.Session(models.SurfaceAttendance).Active() {
		t.Error("ReleaseAll left a stream active")
	}
}
