// ============================================================
// ATTENDANCE CONTROLLER - capture, verify, punch
// ============================================================
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"attendance-kiosk/internal/api"
	"attendance-kiosk/internal/journal"
	"attendance-kiosk/internal/roster"
	"attendance-kiosk/models"
)

var (
	ErrBusy              = errors.New("punch already in progress")
	ErrCameraUnavailable = errors.New("attendance camera is not active")
	ErrMissingIdent      = errors.New("ident is required")
)

const (
	PhraseSuccess = "Attendance recorded successfully."
	PhraseFailure = "Attendance failed. Please try again."

	TextSuccess = "SUCCESS"
	TextFailed  = "FAILED"
	MsgRetry    = "Please try again"

	StatusReady   = "Camera ready."
	StatusStopped = "Camera stopped."
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseCapturing Phase = "capturing"
	PhaseVerifying Phase = "verifying"
	PhasePunching  Phase = "punching"
)

type Backend interface {
	VerifyFace(ctx context.Context, image []byte, threshold float64, topK int) (*models.VerifyResponse, error)
	Punch(ctx context.Context, ident string, image []byte) (*models.PunchResponse, error)
	ManualPunch(ctx context.Context, fields map[string]string) (*models.PunchResponse, error)
}

type Camera interface {
	Acquire(ctx context.Context) (alreadyActive bool, err error)
	Capture(ctx context.Context) (*models.CapturedPhoto, error)
	Release() error
	Active() bool
}

type Presenter interface {
	Present(workflow models.Workflow, outcome models.Outcome, text, detail string)
}

type Speaker interface {
	Speak(message string, positive bool)
}

type Options struct {
	Threshold   float64
	TopK        int
	Phrases     models.PhrasesConfig
	ManualClear time.Duration
	Location    *time.Location
}

// State is a snapshot of the attendance surface.
type State struct {
	Phase        Phase          `json:"phase"`
	CameraActive bool           `json:"camera_active"`
	Status       string         `json:"status"`
	Punch        models.Control `json:"punch"`
	Manual       *ManualResult  `json:"manual,omitempty"`
}

// Result is the outcome of one facial punch.
type Result struct {
	Outcome   models.Outcome `json:"outcome"`
	Ident     string         `json:"ident,omitempty"`
	Score     float64        `json:"score,omitempty"`
	PunchTime string         `json:"punch_time,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

// ManualResult is the message shown under the manual punch form.
type ManualResult struct {
	Success bool   `json:"success"`
	Ident   string `json:"ident,omitempty"`
	Time    string `json:"time,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Controller struct {
	camera    Camera
	backend   Backend
	presenter Presenter
	voice     Speaker
	opts      Options

	busy atomic.Bool

	mu          sync.Mutex
	phase       Phase
	status      string
	punch       models.Control
	manual      *ManualResult
	manualSeq   uint64
	manualTimer *time.Timer
	onChange    func(State)
	onAttempt   func(journal.Attempt)
}

func NewController(camera Camera, backend Backend, presenter Presenter, voice Speaker, opts Options) *Controller {
	if opts.Threshold <= 0 {
		opts.Threshold = 0.50
	}
	if opts.TopK <= 0 {
		opts.TopK = 1
	}
	if opts.Phrases.AttendanceSuccess == "" {
		opts.Phrases.AttendanceSuccess = PhraseSuccess
	}
	if opts.Phrases.AttendanceFailure == "" {
		opts.Phrases.AttendanceFailure = PhraseFailure
	}
	if opts.ManualClear <= 0 {
		opts.ManualClear = models.DefaultManualResultClear
	}
	if opts.Location == nil {
		opts.Location = roster.MustLocation(models.DefaultDisplayTimeZone)
	}

	return &Controller{
		camera:    camera,
		backend:   backend,
		presenter: presenter,
		voice:     voice,
		opts:      opts,
		phase:     PhaseIdle,
		punch:     models.Control{Visible: true, Label: models.LabelPunch},
	}
}

// OnChange registers fn to receive every state change.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// OnAttempt registers fn to receive every finished facial punch.
func (c *Controller) OnAttempt(fn func(journal.Attempt)) {
	c.mu.Lock()
	c.onAttempt = fn
	c.mu.Unlock()
}

// ============================================================
// CAMERA
// ============================================================

// Init arms the attendance camera. On failure the punch button stays
// disabled and the status points the user at manual punch.
func (c *Controller) Init(ctx context.Context) error {
	alreadyActive, err := c.camera.Acquire(ctx)

	c.mu.Lock()
	switch {
	case err != nil:
		c.status = fmt.Sprintf("Camera error: %v. Please use manual punch below.", err)
		c.punch.Enabled = false
	case alreadyActive:
		c.punch.Enabled = !c.busy.Load()
	default:
		c.status = StatusReady
		c.punch.Enabled = !c.busy.Load()
	}
	c.mu.Unlock()

	if err != nil {
		log.Printf("❌ Attendance camera initialization error: %v", err)
	}
	c.changed()
	return err
}

// Release stops the attendance camera and disables facial punch.
func (c *Controller) Release() {
	if err := c.camera.Release(); err != nil {
		log.Printf("⚠️  Release attendance camera: %v", err)
	}
	c.mu.Lock()
	c.punch.Enabled = false
	c.status = StatusStopped
	c.mu.Unlock()
	c.changed()
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	s := State{
		Phase:        c.phase,
		CameraActive: c.camera.Active(),
		Status:       c.status,
		Punch:        c.punch,
	}
	if c.manual != nil {
		m := *c.manual
		s.Manual = &m
	}
	return s
}

func (c *Controller) changed() {
	c.mu.Lock()
	s := c.stateLocked()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.changed()
}

// ============================================================
// FACIAL PUNCH
// ============================================================

// Punch captures a frame, verifies it and records attendance for the
// matched ident. Only ErrBusy and ErrCameraUnavailable are returned as
// errors; every other failure is presented and returned as a Result.
func (c *Controller) Punch(ctx context.Context) (Result, error) {
	if !c.camera.Active() {
		return Result{}, ErrCameraUnavailable
	}
	if !c.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	started := time.Now()

	c.mu.Lock()
	c.punch = models.Control{Visible: true, Label: models.LabelProcessing}
	c.mu.Unlock()
	c.changed()

	var res Result
	defer func() {
		c.resetPunchButton()
		c.record(res, started)
	}()

	res = c.run(ctx)
	return res, nil
}

func (c *Controller) run(ctx context.Context) Result {
	c.setPhase(PhaseCapturing)
	photo, err := c.camera.Capture(ctx)
	if err != nil {
		return c.fail(Result{Reason: "capture: " + err.Error()})
	}

	c.setPhase(PhaseVerifying)
	verify, err := c.backend.VerifyFace(ctx, photo.Image, c.opts.Threshold, c.opts.TopK)
	if err != nil {
		log.Printf("❌ Face verification failed: %v", err)
		return c.fail(Result{Reason: "verify: " + err.Error()})
	}

	outcome := verify.Outcome(c.opts.Threshold)
	if !outcome.Match {
		return c.fail(Result{Score: outcome.Score, Reason: "no match"})
	}

	c.setPhase(PhasePunching)
	punch, err := c.backend.Punch(ctx, outcome.Ident, photo.Image)
	if err != nil {
		log.Printf("❌ Punch for %s rejected: %v", outcome.Ident, err)
		return c.fail(Result{Ident: outcome.Ident, Score: outcome.Score, Reason: "punch: " + err.Error()})
	}

	ident := punch.Ident
	if ident == "" {
		ident = outcome.Ident
	}
	c.presenter.Present(models.WorkflowAttendance, models.OutcomeSuccess, TextSuccess, ident)
	c.speak(c.opts.Phrases.AttendanceSuccess, true)
	log.Printf("✅ Attendance recorded for %s (score %.2f)", ident, outcome.Score)

	return Result{
		Outcome:   models.OutcomeSuccess,
		Ident:     ident,
		Score:     outcome.Score,
		PunchTime: punch.PunchTime,
	}
}

func (c *Controller) fail(res Result) Result {
	res.Outcome = models.OutcomeFailure
	c.presenter.Present(models.WorkflowAttendance, models.OutcomeFailure, TextFailed, MsgRetry)
	c.speak(c.opts.Phrases.AttendanceFailure, false)
	log.Printf("⚠️  Attendance failed: %s", res.Reason)
	return res
}

func (c *Controller) speak(message string, positive bool) {
	if c.voice != nil {
		c.voice.Speak(message, positive)
	}
}

func (c *Controller) resetPunchButton() {
	c.mu.Lock()
	c.phase = PhaseIdle
	c.punch = models.Control{Visible: true, Enabled: c.camera.Active(), Label: models.LabelPunch}
	c.mu.Unlock()
	c.busy.Store(false)
	c.changed()
}

func (c *Controller) record(res Result, started time.Time) {
	c.mu.Lock()
	fn := c.onAttempt
	c.mu.Unlock()
	if fn == nil {
		return
	}
	if res.Outcome == "" {
		res.Outcome = models.OutcomeFailure
		res.Reason = "aborted"
	}
	fn(journal.Attempt{
		Workflow:  models.WorkflowAttendance,
		Outcome:   res.Outcome,
		Ident:     res.Ident,
		Reason:    res.Reason,
		StartedAt: started,
		Duration:  time.Since(started),
	})
}

// ============================================================
// MANUAL PUNCH
// ============================================================

// ManualPunch records attendance from form fields without a face check.
// The shown result clears itself after the configured delay.
func (c *Controller) ManualPunch(ctx context.Context, fields map[string]string) (ManualResult, error) {
	if strings.TrimSpace(fields["ident"]) == "" {
		return ManualResult{}, ErrMissingIdent
	}

	var result ManualResult
	punch, err := c.backend.ManualPunch(ctx, fields)
	switch {
	case err != nil:
		msg := err.Error()
		var se *api.StatusError
		if errors.As(err, &se) && strings.TrimSpace(se.Body) != "" {
			msg = strings.TrimSpace(se.Body)
		}
		result = ManualResult{Error: "Error: " + msg}
		log.Printf("❌ Manual punch failed: %v", err)
	default:
		result = ManualResult{
			Success: true,
			Ident:   punch.Ident,
			Time:    roster.FormatDateTime(punch.PunchTime, c.opts.Location),
		}
		log.Printf("✅ Manual attendance recorded for %s", punch.Ident)
	}

	c.showManual(result)
	return result, err
}

func (c *Controller) showManual(result ManualResult) {
	c.mu.Lock()
	c.manualSeq++
	seq := c.manualSeq
	c.manual = &result
	if c.manualTimer != nil {
		c.manualTimer.Stop()
		c.manualTimer = nil
	}
	if result.Success {
		c.manualTimer = time.AfterFunc(c.opts.ManualClear, func() { c.clearManual(seq) })
	}
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) clearManual(seq uint64) {
	c.mu.Lock()
	if c.manualSeq != seq {
		c.mu.Unlock()
		return
	}
	c.manual = nil
	c.manualTimer = nil
	c.mu.Unlock()
	c.changed()
}

// Close stops the manual result timer.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.manualTimer != nil {
		c.manualTimer.Stop()
		c.manualTimer = nil
	}
}
