package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KIOSK_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:5000" || cfg.API.Timeout != 30*time.Second {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Camera.Person.IdealWidth != 1280 || cfg.Camera.Person.Quality != 0.90 {
		t.Errorf("person camera = %+v", cfg.Camera.Person)
	}
	if cfg.Camera.Attendance.IdealHeight != 1080 || cfg.Camera.Attendance.Quality != 0.95 {
		t.Errorf("attendance camera = %+v", cfg.Camera.Attendance)
	}
	if cfg.Verify.Threshold != 0.50 || cfg.Verify.TopK != 1 {
		t.Errorf("verify = %+v", cfg.Verify)
	}
	if cfg.Overlay.ShowDelay != 50*time.Millisecond || cfg.Overlay.DisplayWindow != 3*time.Second {
		t.Errorf("overlay = %+v", cfg.Overlay)
	}
	if cfg.Voice.Lang != "en-GB" || cfg.Voice.PitchUp != 1.2 || cfg.Voice.PitchDn != 0.8 {
		t.Errorf("voice = %+v", cfg.Voice)
	}
	if cfg.Voice.Phrases.AttendanceSuccess != "Attendance recorded successfully." {
		t.Errorf("phrases = %+v", cfg.Voice.Phrases)
	}
	if cfg.Kiosk.DefaultTimeZone != "Asia/Taipei" || cfg.Journal.Path != "./data/journal.db" {
		t.Errorf("kiosk = %+v journal = %+v", cfg.Kiosk, cfg.Journal)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KIOSK_API_URL", "http://api.internal:8000")
	t.Setenv("KIOSK_API_TIMEOUT", "5")
	t.Setenv("KIOSK_ATTENDANCE_CAMERA", "2")
	t.Setenv("KIOSK_VERIFY_THRESHOLD", "0.65")
	t.Setenv("KIOSK_VOICE", "off")
	t.Setenv("KIOSK_JOURNAL_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://api.internal:8000" || cfg.API.Timeout != 5*time.Second {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Camera.Attendance.DeviceID != 2 || cfg.Camera.Person.DeviceID != 0 {
		t.Errorf("devices = %d / %d", cfg.Camera.Person.DeviceID, cfg.Camera.Attendance.DeviceID)
	}
	if cfg.Verify.Threshold != 0.65 {
		t.Errorf("threshold = %v", cfg.Verify.Threshold)
	}
	if cfg.Voice.Backend != "off" {
		t.Errorf("voice backend = %q", cfg.Voice.Backend)
	}
	if cfg.Journal.Path != "" {
		t.Errorf("journal path = %q, want disabled", cfg.Journal.Path)
	}
}

func TestLoadConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiosk.yaml")
	overlay := `
overlay:
  display_window: 4s
voice:
  phrases:
    attendance_success: Welcome!
camera:
  attendance:
    ideal_width: 1280
`
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KIOSK_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfigRef != path {
		t.Errorf("ConfigRef = %q", cfg.ConfigRef)
	}
	if cfg.Overlay.DisplayWindow != 4*time.Second || cfg.Overlay.ShowDelay != 50*time.Millisecond {
		t.Errorf("overlay = %+v", cfg.Overlay)
	}
	if cfg.Voice.Phrases.AttendanceSuccess != "Welcome!" || cfg.Voice.Phrases.AttendanceFailure == "" {
		t.Errorf("phrases = %+v", cfg.Voice.Phrases)
	}
	if cfg.Camera.Attendance.IdealWidth != 1280 || cfg.Camera.Attendance.IdealHeight != 1080 {
		t.Errorf("attendance camera = %+v", cfg.Camera.Attendance)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"KIOSK_VERIFY_THRESHOLD", "1.5"},
		{"KIOSK_VERIFY_TOP_K", "0"},
		{"KIOSK_VOICE", "loud"},
		{"KIOSK_DISPLAY_TZ", "Mars/Olympus"},
		{"KIOSK_CONFIG_FILE", "/nonexistent/kiosk.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s succeeded", tt.key, tt.value)
			}
		})
	}
}

func TestDurationEnv(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"12", 12 * time.Second},
		{"nope", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("KIOSK_TEST_DURATION", tt.value)
		if got := durationEnv("KIOSK_TEST_DURATION", time.Minute); got != tt.want {
			t.Errorf("durationEnv(%q) = %s, want %s", tt.value, got, tt.want)
		}
	}
}
