// ============================================================
// ENROLLMENT CONTROLLER - form, photo, duplicate check, create
// ============================================================
package enrollment

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"attendance-kiosk/internal/api"
	"attendance-kiosk/internal/journal"
	"attendance-kiosk/models"
)

var ErrBusy = errors.New("enrollment already in progress")

type Phase string

const (
	PhaseFormEditing       Phase = "form_editing"
	PhaseAwaitingPhoto     Phase = "awaiting_photo"
	PhaseDuplicateChecking Phase = "duplicate_checking"
	PhaseSubmitting        Phase = "submitting"
	PhaseEnrolled          Phase = "enrolled"
	PhaseFailed            Phase = "failed"
)

// Overlay texts.
const (
	TextChecking   = "CHECKING..."
	TextEnrolling  = "Enrolling..."
	TextEnrolled   = "ENROLLED"
	TextFailed     = "FAILED"
	MsgNoPhoto     = "Please capture a photo"
	MsgIncomplete  = "Please fill in all required fields"
	MsgDuplicate   = "Already enrolled"
	MsgCheckFailed = "Check failed"
	MsgEnrollFail  = "Enrollment failed"
	MsgNetworkFail = "Network error"
)

type Backend interface {
	LookupPerson(ctx context.Context, ident string) api.LookupResult
	CreatePerson(ctx context.Context, ident, timeZone string, photo []byte) error
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

// Refresher reloads the people list after a successful enrollment.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// State is a snapshot of the enrollment surface.
type State struct {
	Phase        Phase          `json:"phase"`
	Form         Form           `json:"form"`
	Ident        string         `json:"ident"`
	HasPhoto     bool           `json:"has_photo"`
	CameraActive bool           `json:"camera_active"`
	CameraError  string         `json:"camera_error,omitempty"`
	Submit       models.Control `json:"submit"`
	Capture      models.Control `json:"capture"`
	Retake       models.Control `json:"retake"`
	CameraFrame  models.Control `json:"camera_frame"`
}

// Result is the outcome of one Submit.
type Result struct {
	Outcome models.Outcome `json:"outcome"`
	Ident   string         `json:"ident"`
	Message string         `json:"message,omitempty"`
}

type Controller struct {
	camera    Camera
	backend   Backend
	presenter Presenter
	roster    Refresher
	defaultTZ string

	busy atomic.Bool

	mu        sync.Mutex
	form      Form
	photo     *models.CapturedPhoto
	phase     Phase
	cameraErr error
	onChange  func(State)
	onAttempt func(journal.Attempt)
}

func NewController(camera Camera, backend Backend, presenter Presenter, roster Refresher, defaultTZ string) *Controller {
	return &Controller{
		camera:    camera,
		backend:   backend,
		presenter: presenter,
		roster:    roster,
		defaultTZ: defaultTZ,
		form:      DefaultForm(defaultTZ),
	}
}

// OnChange registers fn to receive every state change.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// OnAttempt registers fn to receive every finished submit.
func (c *Controller) OnAttempt(fn func(journal.Attempt)) {
	c.mu.Lock()
	c.onAttempt = fn
	c.mu.Unlock()
}

// ============================================================
// CAMERA
// ============================================================

// ArmCamera acquires the enrollment camera. A failure leaves capture hidden.
func (c *Controller) ArmCamera(ctx context.Context) error {
	_, err := c.camera.Acquire(ctx)

	c.mu.Lock()
	c.cameraErr = err
	c.mu.Unlock()

	if err != nil {
		log.Printf("❌ Camera error: %v", err)
	}
	c.changed()
	return err
}

// ReleaseCamera stops the enrollment camera.
func (c *Controller) ReleaseCamera() {
	if err := c.camera.Release(); err != nil {
		log.Printf("⚠️  Release enrollment camera: %v", err)
	}
	c.changed()
}

// CapturePhoto stores a still from the camera as the enrollment photo.
func (c *Controller) CapturePhoto(ctx context.Context) (State, error) {
	photo, err := c.camera.Capture(ctx)
	if err != nil {
		log.Printf("❌ Capture failed: %v", err)
		return c.State(), err
	}

	c.mu.Lock()
	c.photo = photo
	c.mu.Unlock()

	log.Printf("📸 Enrollment photo captured: %dx%d, %d bytes", photo.Width, photo.Height, len(photo.Image))
	return c.changed(), nil
}

// Retake drops the captured photo and shows the live camera again.
func (c *Controller) Retake() State {
	c.mu.Lock()
	c.photo = nil
	c.mu.Unlock()
	return c.changed()
}

// ============================================================
// FORM
// ============================================================

// UpdateForm replaces the form. An empty role keeps the current one.
func (c *Controller) UpdateForm(f Form) State {
	c.mu.Lock()
	if f.Role == "" {
		f.Role = c.form.Role
	}
	c.form = f
	c.mu.Unlock()
	return c.changed()
}

// SetRole switches the form role.
func (c *Controller) SetRole(role models.Role) State {
	c.mu.Lock()
	c.form = c.form.WithRole(role)
	c.mu.Unlock()
	return c.changed()
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	complete := c.form.Complete()
	hasPhoto := c.photo != nil
	active := c.camera.Active()

	phase := c.phase
	if phase == "" {
		phase = PhaseFormEditing
		if complete && !hasPhoto {
			phase = PhaseAwaitingPhoto
		}
	}

	s := State{
		Phase:        phase,
		Form:         c.form,
		HasPhoto:     hasPhoto,
		CameraActive: active,
		Submit:       SubmitControl(complete, hasPhoto),
		Capture:      models.Control{Enabled: active, Visible: active && !hasPhoto},
		Retake:       models.Control{Enabled: hasPhoto, Visible: hasPhoto},
		CameraFrame:  models.Control{Visible: !hasPhoto},
	}
	if complete {
		s.Ident = c.form.Ident()
	}
	if c.cameraErr != nil {
		s.CameraError = c.cameraErr.Error()
	}
	if c.busy.Load() {
		s.Submit.Enabled = false
	}
	return s
}

func (c *Controller) changed() State {
	c.mu.Lock()
	s := c.stateLocked()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(s)
	}
	return s
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.changed()
}

// ============================================================
// SUBMIT
// ============================================================

// Submit runs the duplicate check and the create request for the current
// form. Only ErrBusy is returned as an error; every other failure is a
// Result with OutcomeFailure that has already been presented.
func (c *Controller) Submit(ctx context.Context) (Result, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	started := time.Now()

	var res Result
	defer func() {
		c.mu.Lock()
		c.phase = ""
		c.mu.Unlock()
		c.busy.Store(false)
		c.changed()
		c.record(res, started)
	}()

	res = c.submit(ctx)
	return res, nil
}

func (c *Controller) submit(ctx context.Context) Result {
	c.mu.Lock()
	form := c.form
	photo := c.photo
	c.mu.Unlock()

	ident := form.Ident()
	log.Printf("👤 Enrolling %q", ident)

	if photo == nil {
		return c.fail(ident, MsgNoPhoto)
	}
	if !form.Complete() {
		return c.fail(ident, MsgIncomplete)
	}

	// Duplicate check
	c.setPhase(PhaseDuplicateChecking)
	c.presenter.Present(models.WorkflowEnrollment, models.OutcomeChecking, TextChecking, ident)

	lookup := c.backend.LookupPerson(ctx, ident)
	switch lookup.Status {
	case api.LookupFound:
		return c.fail(ident, MsgDuplicate)
	case api.LookupNotFound:
	default:
		log.Printf("❌ Duplicate check error: %v", lookup.Err)
		return c.fail(ident, MsgCheckFailed)
	}

	// Create
	c.setPhase(PhaseSubmitting)
	c.presenter.Present(models.WorkflowEnrollment, models.OutcomeProcessing, TextEnrolling, "")

	if err := c.backend.CreatePerson(ctx, ident, form.TimeZone, photo.Image); err != nil {
		log.Printf("❌ Enrollment error: %v", err)
		if api.StatusCode(err) != 0 {
			return c.fail(ident, MsgEnrollFail)
		}
		return c.fail(ident, MsgNetworkFail)
	}

	c.setPhase(PhaseEnrolled)
	c.presenter.Present(models.WorkflowEnrollment, models.OutcomeSuccess, TextEnrolled, ident)
	log.Printf("✅ Enrolled %q", ident)

	c.reset(ctx)
	if c.roster != nil {
		if err := c.roster.Refresh(ctx); err != nil {
			log.Printf("⚠️  People refresh after enrollment failed: %v", err)
		}
	}
	return Result{Outcome: models.OutcomeSuccess, Ident: ident}
}

func (c *Controller) fail(ident, message string) Result {
	c.setPhase(PhaseFailed)
	c.presenter.Present(models.WorkflowEnrollment, models.OutcomeFailure, TextFailed, message)
	return Result{Outcome: models.OutcomeFailure, Ident: ident, Message: message}
}

// reset clears the photo, restores the student form and re-arms the camera.
func (c *Controller) reset(ctx context.Context) {
	c.mu.Lock()
	c.photo = nil
	c.form = DefaultForm(c.defaultTZ)
	c.mu.Unlock()

	if c.camera.Active() {
		return
	}
	// The enrollment stands; the failure is kept as the camera error.
	if err := c.ArmCamera(ctx); err != nil {
		log.Printf("⚠️  Camera not re-armed after enrollment: %v", err)
	}
}

func (c *Controller) record(res Result, started time.Time) {
	c.mu.Lock()
	fn := c.onAttempt
	c.mu.Unlock()
	if fn == nil || res.Outcome == "" {
		return
	}
	fn(journal.Attempt{
		Workflow:  models.WorkflowEnrollment,
		Outcome:   res.Outcome,
		Ident:     res.Ident,
		Reason:    res.Message,
		StartedAt: started,
		Duration:  time.Since(started),
	})
}
