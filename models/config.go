package models

import "time"

// ============================================================
// CONFIGURATION
// ============================================================

type Config struct {
	API       APIConfig
	Kiosk     KioskConfig
	Camera    CameraConfig
	Verify    VerifyConfig
	Overlay   OverlayConfig
	Voice     VoiceConfig
	Journal   JournalConfig
	ConfigRef string // YAML overlay file that was applied, empty when none
}

type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	SecretKey string // sent as X-Secret-Key when set
}

type KioskConfig struct {
	Listen          string
	DefaultTimeZone string
	DisplayTimeZone string
}

type CameraConfig struct {
	Person     SurfaceConfig `yaml:"person"`
	Attendance SurfaceConfig `yaml:"attendance"`
}

// SurfaceConfig describes the device constraints and JPEG quality for one surface.
type SurfaceConfig struct {
	DeviceID    int     `yaml:"device_id"`
	FacingMode  string  `yaml:"facing_mode"`
	IdealWidth  int     `yaml:"ideal_width"`
	IdealHeight int     `yaml:"ideal_height"`
	Quality     float64 `yaml:"quality"` // 0..1, like canvas.toBlob
}

// For returns the surface config for the given surface.
func (c CameraConfig) For(surface Surface) SurfaceConfig {
	if surface == SurfaceAttendance {
		return c.Attendance
	}
	return c.Person
}

type VerifyConfig struct {
	Threshold float64 `yaml:"threshold"`
	TopK      int     `yaml:"top_k"`
}

type OverlayConfig struct {
	ShowDelay     time.Duration `yaml:"show_delay"`
	DisplayWindow time.Duration `yaml:"display_window"`
	ManualClear   time.Duration `yaml:"manual_clear"`
}

type VoiceConfig struct {
	Backend  string            `yaml:"backend"` // auto | espeak | clips | off
	Lang     string            `yaml:"lang"`
	Rate     float64           `yaml:"rate"`
	Volume   float64           `yaml:"volume"`
	PitchUp  float64           `yaml:"pitch_positive"`
	PitchDn  float64           `yaml:"pitch_negative"`
	ClipsDir string            `yaml:"clips_dir"`
	Phrases  PhrasesConfig     `yaml:"phrases"`
	Clips    map[string]string `yaml:"clips"` // phrase -> ogg file name inside ClipsDir
}

type PhrasesConfig struct {
	AttendanceSuccess string `yaml:"attendance_success"`
	AttendanceFailure string `yaml:"attendance_failure"`
}

type JournalConfig struct {
	Path string
}
