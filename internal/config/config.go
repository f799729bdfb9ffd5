package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"attendance-kiosk/models"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// fileConfig is the YAML part of the configuration.
type fileConfig struct {
	Camera  models.CameraConfig  `yaml:"camera"`
	Verify  models.VerifyConfig  `yaml:"verify"`
	Overlay models.OverlayConfig `yaml:"overlay"`
	Voice   models.VoiceConfig   `yaml:"voice"`
}

// Load builds the configuration from the embedded defaults, the optional
// KIOSK_CONFIG_FILE overlay and KIOSK_* environment variables, in that order.
func Load() (*models.Config, error) {
	var file fileConfig
	if err := yaml.Unmarshal(defaultsYAML, &file); err != nil {
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	ref := getEnv("KIOSK_CONFIG_FILE", "")
	if ref != "" {
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", ref, err)
		}
	}

	file.Camera.Person.DeviceID = intEnv("KIOSK_PERSON_CAMERA", file.Camera.Person.DeviceID)
	file.Camera.Attendance.DeviceID = intEnv("KIOSK_ATTENDANCE_CAMERA", file.Camera.Attendance.DeviceID)
	file.Verify.Threshold = floatEnv("KIOSK_VERIFY_THRESHOLD", file.Verify.Threshold)
	file.Verify.TopK = intEnv("KIOSK_VERIFY_TOP_K", file.Verify.TopK)
	file.Voice.Backend = getEnv("KIOSK_VOICE", file.Voice.Backend)
	file.Voice.ClipsDir = getEnv("KIOSK_VOICE_CLIPS_DIR", file.Voice.ClipsDir)

	cfg := &models.Config{
		API: models.APIConfig{
			BaseURL:   getEnv("KIOSK_API_URL", "http://localhost:5000"),
			Timeout:   durationEnv("KIOSK_API_TIMEOUT", 30*time.Second),
			SecretKey: os.Getenv("KIOSK_SECRET_KEY"),
		},
		Kiosk: models.KioskConfig{
			Listen:          getEnv("KIOSK_LISTEN", "0.0.0.0:8090"),
			DefaultTimeZone: getEnv("KIOSK_DEFAULT_TZ", models.DefaultDisplayTimeZone),
			DisplayTimeZone: getEnv("KIOSK_DISPLAY_TZ", models.DefaultDisplayTimeZone),
		},
		Camera:  file.Camera,
		Verify:  file.Verify,
		Overlay: file.Overlay,
		Voice:   file.Voice,
		Journal: models.JournalConfig{
			Path: lookupEnv("KIOSK_JOURNAL_PATH", "./data/journal.db"),
		},
		ConfigRef: ref,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *models.Config) error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("KIOSK_API_URL must not be empty")
	}
	if cfg.Verify.Threshold < 0 || cfg.Verify.Threshold > 1 {
		return fmt.Errorf("verify threshold %.2f outside 0..1", cfg.Verify.Threshold)
	}
	if cfg.Verify.TopK < 1 {
		return fmt.Errorf("verify top_k must be at least 1, got %d", cfg.Verify.TopK)
	}
	for _, s := range []models.Surface{models.SurfacePerson, models.SurfaceAttendance} {
		if q := cfg.Camera.For(s).Quality; q <= 0 || q > 1 {
			return fmt.Errorf("%s camera quality %.2f outside 0..1", s, q)
		}
	}
	switch cfg.Voice.Backend {
	case "auto", "espeak", "clips", "off":
	default:
		return fmt.Errorf("unknown voice backend %q", cfg.Voice.Backend)
	}
	if _, err := time.LoadLocation(cfg.Kiosk.DisplayTimeZone); err != nil {
		return fmt.Errorf("display time zone: %w", err)
	}
	return nil
}

// ============================================================
// ENV HELPERS
// ============================================================

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// lookupEnv is getEnv except that an explicitly empty variable wins.
func lookupEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func intEnv(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func floatEnv(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultVal
}

func durationEnv(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	// Bare numbers are seconds.
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}
