package kiosk

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"attendance-kiosk/internal/api"
	"attendance-kiosk/internal/attendance"
	"attendance-kiosk/internal/audio"
	"attendance-kiosk/internal/camera"
	"attendance-kiosk/internal/display"
	"attendance-kiosk/internal/enrollment"
	"attendance-kiosk/internal/journal"
	"attendance-kiosk/internal/metrics"
	"attendance-kiosk/internal/presenter"
	"attendance-kiosk/internal/roster"
	"attendance-kiosk/models"
)

// ============================================================
// KIOSK - wires cameras, controllers and the local surface
// ============================================================

const ShutdownTimeout = 5 * time.Second

type Kiosk struct {
	cfg *models.Config

	apiClient  *api.APIClient
	backend    *api.Backend
	cameras    *camera.Manager
	presenter  *presenter.Presenter
	voice      *audio.Voice
	roster     *roster.Roster
	enrollment *enrollment.Controller
	attendance *attendance.Controller
	journal    *journal.Journal
	metrics    *metrics.Metrics
	hub        *display.Hub
	server     *display.Server

	mu         sync.Mutex
	section    string
	lastManual *attendance.ManualResult

	shutdownOnce sync.Once
}

// New builds the kiosk. synth may be nil for a silent kiosk.
func New(cfg *models.Config, device camera.Device, synth audio.Synthesizer) (*Kiosk, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if device == nil {
		return nil, fmt.Errorf("camera device cannot be nil")
	}

	k := &Kiosk{
		cfg:     cfg,
		metrics: metrics.New(),
		hub:     display.NewHub(),
	}

	k.apiClient = api.NewAPIClient(cfg.API.BaseURL, cfg.API.Timeout)
	k.apiClient.SetSecretKey(cfg.API.SecretKey)
	k.apiClient.SetObserver(k.metrics.ObserveBackend)
	k.backend = api.NewBackend(k.apiClient)

	k.cameras = camera.NewManager(device, cfg.Camera)
	k.cameras.SetObserver(k.metrics.CameraChanged)

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			log.Printf("⚠️  Attempt journal disabled: %v", err)
		} else {
			k.journal = j
			log.Printf("📒 Attempt journal at %s", cfg.Journal.Path)
		}
	}

	loc := roster.MustLocation(cfg.Kiosk.DisplayTimeZone)

	k.presenter = presenter.NewPresenter(cfg.Overlay, presenter.SinkFunc(func(s models.OverlayState) {
		k.hub.Broadcast(models.EventOverlay, s)
	}))
	k.voice = audio.NewVoice(synth, cfg.Voice)

	k.roster = roster.New(k.backend, loc)
	k.roster.OnChange(func(v roster.View) { k.hub.Broadcast(models.EventPeople, v) })

	k.enrollment = enrollment.NewController(
		k.cameras.Session(models.SurfacePerson),
		k.backend,
		k.presenter,
		k.roster,
		cfg.Kiosk.DefaultTimeZone,
	)
	k.enrollment.OnChange(func(s enrollment.State) { k.hub.Broadcast(models.EventEnrollment, s) })
	k.enrollment.OnAttempt(k.recordAttempt)

	k.attendance = attendance.NewController(
		k.cameras.Session(models.SurfaceAttendance),
		k.backend,
		k.presenter,
		k.voice,
		attendance.Options{
			Threshold:   cfg.Verify.Threshold,
			TopK:        cfg.Verify.TopK,
			Phrases:     cfg.Voice.Phrases,
			ManualClear: cfg.Overlay.ManualClear,
			Location:    loc,
		},
	)
	k.attendance.OnChange(k.attendanceChanged)
	k.attendance.OnAttempt(k.recordAttempt)

	k.server = display.NewServer(cfg.Kiosk.Listen, display.Deps{
		Enrollment: k.enrollment,
		Attendance: k.attendance,
		People:     k.roster,
		Overlays:   k.presenter,
		Sections:   k,
		Hub:        k.hub,
		Metrics:    k.metrics.Handler(),
		Health:     k.backend.Health,
	})

	return k, nil
}

// Backend exposes the API for one-shot commands.
func (k *Kiosk) Backend() *api.Backend { return k.backend }

// Server exposes the local surface.
func (k *Kiosk) Server() *display.Server { return k.server }

// Start checks the backend, loads the roster and opens the people section.
func (k *Kiosk) Start(ctx context.Context) {
	if err := k.backend.Health(ctx); err != nil {
		log.Printf("⚠️  Backend health check failed: %v", err)
	} else {
		log.Printf("✅ Backend reachable at %s", k.cfg.API.BaseURL)
	}

	if err := k.roster.Refresh(ctx); err != nil {
		log.Printf("⚠️  Initial people load failed: %v", err)
	}

	if err := k.EnterSection(ctx, models.SectionPeople); err != nil {
		log.Printf("⚠️  %v", err)
	}
}

// Run starts the kiosk and serves until ctx is cancelled.
func (k *Kiosk) Run(ctx context.Context) error {
	k.Start(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- k.server.Start() }()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	k.Close()
	return err
}

// ============================================================
// SECTIONS
// ============================================================

func (k *Kiosk) Section() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.section
}

// EnterSection shows section, releasing the camera of the section left and
// arming the one of the section entered.
func (k *Kiosk) EnterSection(ctx context.Context, section string) error {
	k.mu.Lock()
	prev := k.section
	k.section = section
	k.mu.Unlock()

	if prev != section {
		switch prev {
		case models.SectionPeople:
			k.enrollment.ReleaseCamera()
		case models.SectionAttendance:
			k.attendance.Release()
		}
	}

	log.Printf("🧭 Section: %s", section)
	switch section {
	case models.SectionPeople:
		return k.enrollment.ArmCamera(ctx)
	case models.SectionAttendance:
		return k.attendance.Init(ctx)
	}
	return fmt.Errorf("unknown section %q", section)
}

// ============================================================
// EVENTS
// ============================================================

func (k *Kiosk) attendanceChanged(s attendance.State) {
	k.hub.Broadcast(models.EventAttendance, s)

	k.mu.Lock()
	changed := (s.Manual == nil) != (k.lastManual == nil) ||
		(s.Manual != nil && *s.Manual != *k.lastManual)
	k.lastManual = s.Manual
	k.mu.Unlock()

	if changed {
		k.hub.Broadcast(models.EventManual, s.Manual)
	}
}

func (k *Kiosk) recordAttempt(a journal.Attempt) {
	k.metrics.Attempt(a.Workflow, a.Outcome)
	if err := k.journal.Record(&a); err != nil {
		log.Printf("⚠️  Journal write failed: %v", err)
	}
}

// ============================================================
// SHUTDOWN
// ============================================================

// Close stops the surface, silences the voice and releases every camera.
func (k *Kiosk) Close() {
	k.shutdownOnce.Do(func() {
		log.Println("🛑 Shutdown starting...")

		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := k.server.Shutdown(ctx); err != nil {
			log.Printf("⚠️  %v", err)
		}

		k.presenter.Close()
		k.attendance.Close()
		k.voice.Stop()
		k.cameras.ReleaseAll()

		if err := k.journal.Close(); err != nil {
			log.Printf("⚠️  Close journal: %v", err)
		}
		log.Println("✅ Shutdown complete")
	})
}
