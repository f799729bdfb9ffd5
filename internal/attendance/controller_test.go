package attendance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"attendance-kiosk/internal/api"
	"attendance-kiosk/internal/journal"
	"attendance-kiosk/models"
)

// ============================================================
// FAKES
// ============================================================

type fakeCamera struct {
	mu         sync.Mutex
	active     bool
	fail       error
	captureErr error
}

func (f *fakeCamera) Acquire(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return false, f.fail
	}
	if f.active {
		return true, nil
	}
	f.active = true
	return false, nil
}

func (f *fakeCamera) Capture(ctx context.Context) (*models.CapturedPhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return &models.CapturedPhoto{Surface: models.SurfaceAttendance, Image: []byte("frame"), Width: 1920, Height: 1080}, nil
}

func (f *fakeCamera) Release() error {
	f.mu.Lock()
	f.active = false
	f.mu.Unlock()
	return nil
}

func (f *fakeCamera) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

type overlay struct {
	outcome      models.Outcome
	text, detail string
}

type fakePresenter struct {
	mu    sync.Mutex
	calls []overlay
}

func (f *fakePresenter) Present(_ models.Workflow, outcome models.Outcome, text, detail string) {
	f.mu.Lock()
	f.calls = append(f.calls, overlay{outcome, text, detail})
	f.mu.Unlock()
}

type utterance struct {
	message  string
	positive bool
}

type fakeVoice struct {
	mu    sync.Mutex
	calls []utterance
}

func (f *fakeVoice) Speak(message string, positive bool) {
	f.mu.Lock()
	f.calls = append(f.calls, utterance{message, positive})
	f.mu.Unlock()
}

// fakeLedger answers verify and punch requests.
type fakeLedger struct {
	verifyStatus int
	verifyBody   string
	punchStatus  int
	punchBody    string

	verifies atomic.Int32
	punches  atomic.Int32

	mu         sync.Mutex
	punchIdent string
	punchImage bool
	threshold  string
	topK       string
	fields     map[string]string
}

func (f *fakeLedger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	switch r.URL.Path {
	case models.APIFaceVerify:
		f.verifies.Add(1)
		f.mu.Lock()
		f.threshold = r.FormValue("threshold")
		f.topK = r.FormValue("top_k")
		f.mu.Unlock()
		w.WriteHeader(f.verifyStatus)
		w.Write([]byte(f.verifyBody))
	case models.APIPunch:
		f.punches.Add(1)
		_, _, imgErr := r.FormFile("image")
		f.mu.Lock()
		f.punchIdent = r.FormValue("ident")
		f.punchImage = imgErr == nil
		f.fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			f.fields[k] = v[0]
		}
		f.mu.Unlock()
		w.WriteHeader(f.punchStatus)
		w.Write([]byte(f.punchBody))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type fixture struct {
	ctrl      *Controller
	camera    *fakeCamera
	presenter *fakePresenter
	voice     *fakeVoice
	ledger    *fakeLedger
	server    *httptest.Server
	attempts  []journal.Attempt
}

func newFixture(t *testing.T, ledger *fakeLedger) *fixture {
	t.Helper()
	f := &fixture{
		camera:    &fakeCamera{},
		presenter: &fakePresenter{},
		voice:     &fakeVoice{},
		ledger:    ledger,
	}
	f.server = httptest.NewServer(ledger)
	t.Cleanup(f.server.Close)

	backend := api.NewBackend(api.NewAPIClient(f.server.URL, 5*time.Second))
	f.ctrl = NewController(f.camera, backend, f.presenter, f.voice, Options{ManualClear: 50 * time.Millisecond})
	f.ctrl.OnAttempt(func(a journal.Attempt) { f.attempts = append(f.attempts, a) })
	t.Cleanup(f.ctrl.Close)

	if err := f.ctrl.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return f
}

func (f *fixture) assertReset(t *testing.T) {
	t.Helper()
	s := f.ctrl.State()
	if !s.Punch.Enabled || s.Punch.Label != models.LabelPunch || s.Phase != PhaseIdle {
		t.Errorf("punch not reset: %+v", s)
	}
}

// ============================================================
// SCENARIOS
// ============================================================

func TestPunchMatched(t *testing.T) {
	f := newFixture(t, &fakeLedger{
		verifyStatus: http.StatusOK,
		verifyBody:   `{"match":true,"ident":"TEACHER Smith","score":0.87}`,
		punchStatus:  http.StatusCreated,
		punchBody:    `{"ident":"TEACHER Smith","punch_time":"2024-01-01T01:00:00Z"}`,
	})

	res, err := f.ctrl.Punch(context.Background())
	if err != nil {
		t.Fatalf("Punch: %v", err)
	}
	if res.Outcome != models.OutcomeSuccess || res.Ident != "TEACHER Smith" || res.PunchTime != "2024-01-01T01:00:00Z" {
		t.Errorf("result = %+v", res)
	}

	if len(f.presenter.calls) != 1 || f.presenter.calls[0] != (overlay{models.OutcomeSuccess, TextSuccess, "TEACHER Smith"}) {
		t.Errorf("overlays = %+v", f.presenter.calls)
	}
	if len(f.voice.calls) != 1 || f.voice.calls[0] != (utterance{PhraseSuccess, true}) {
		t.Errorf("speech = %+v", f.voice.calls)
	}
	f.assertReset(t)

	f.ledger.mu.Lock()
	defer f.ledger.mu.Unlock()
	if f.ledger.threshold != "0.50" || f.ledger.topK != "1" {
		t.Errorf("verify params = %q / %q", f.ledger.threshold, f.ledger.topK)
	}
	if f.ledger.punchIdent != "TEACHER Smith" || !f.ledger.punchImage {
		t.Errorf("punch request ident=%q image=%v", f.ledger.punchIdent, f.ledger.punchImage)
	}
}

func TestPunchUnmatchedIssuesNoPunch(t *testing.T) {
	bodies := []string{
		`{"match":false}`,
		`{"match":true}`,
		`{"match":null,"ident":"TEACHER Smith"}`,
		`{}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			f := newFixture(t, &fakeLedger{verifyStatus: http.StatusOK, verifyBody: body, punchStatus: http.StatusCreated})

			res, err := f.ctrl.Punch(context.Background())
			if err != nil {
				t.Fatalf("Punch: %v", err)
			}
			if res.Outcome != models.OutcomeFailure {
				t.Errorf("result = %+v", res)
			}
			if n := f.ledger.punches.Load(); n != 0 {
				t.Errorf("punch issued %d times", n)
			}
			if len(f.presenter.calls) != 1 || f.presenter.calls[0] != (overlay{models.OutcomeFailure, TextFailed, MsgRetry}) {
				t.Errorf("overlays = %+v", f.presenter.calls)
			}
			if len(f.voice.calls) != 1 || f.voice.calls[0] != (utterance{PhraseFailure, false}) {
				t.Errorf("speech = %+v", f.voice.calls)
			}
			f.assertReset(t)
		})
	}
}

func TestPunchResetsOnEveryBranch(t *testing.T) {
	matched := `{"match":true,"ident":"STAFF Ann"}`
	tests := []struct {
		name        string
		ledger      *fakeLedger
		closeServer bool
		captureErr  error
		want        models.Outcome
	}{
		{"matched success", &fakeLedger{verifyStatus: 200, verifyBody: matched, punchStatus: 201, punchBody: `{"ident":"STAFF Ann"}`}, false, nil, models.OutcomeSuccess},
		{"matched punch rejected", &fakeLedger{verifyStatus: 200, verifyBody: matched, punchStatus: 500, punchBody: "db down"}, false, nil, models.OutcomeFailure},
		{"unmatched", &fakeLedger{verifyStatus: 200, verifyBody: `{"match":false}`}, false, nil, models.OutcomeFailure},
		{"verify non-2xx", &fakeLedger{verifyStatus: 503, verifyBody: "busy"}, false, nil, models.OutcomeFailure},
		{"transport error", &fakeLedger{}, true, nil, models.OutcomeFailure},
		{"capture error", &fakeLedger{}, false, errors.New("frame grab failed"), models.OutcomeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.ledger)
			f.camera.captureErr = tt.captureErr
			if tt.closeServer {
				f.server.Close()
			}

			res, err := f.ctrl.Punch(context.Background())
			if err != nil {
				t.Fatalf("Punch: %v", err)
			}
			if res.Outcome != tt.want {
				t.Errorf("outcome = %s, want %s (%+v)", res.Outcome, tt.want, res)
			}
			f.assertReset(t)

			if len(f.attempts) != 1 || f.attempts[0].Outcome != tt.want {
				t.Errorf("attempts = %+v", f.attempts)
			}
			if tt.want == models.OutcomeFailure && f.voice.calls[0].positive {
				t.Error("failure spoken with positive pitch")
			}
		})
	}
}

// ============================================================
// BUSY, PANIC & CAMERA
// ============================================================

type gatedBackend struct {
	entered chan struct{}
	release chan struct{}
	panics  bool
}

func (g *gatedBackend) VerifyFace(ctx context.Context, image []byte, threshold float64, topK int) (*models.VerifyResponse, error) {
	if g.panics {
		panic("decoder exploded")
	}
	close(g.entered)
	<-g.release
	return &models.VerifyResponse{}, nil
}

func (g *gatedBackend) Punch(ctx context.Context, ident string, image []byte) (*models.PunchResponse, error) {
	return nil, errors.New("unexpected punch")
}

func (g *gatedBackend) ManualPunch(ctx context.Context, fields map[string]string) (*models.PunchResponse, error) {
	return nil, errors.New("unexpected manual punch")
}

func TestPunchRejectsWhileBusy(t *testing.T) {
	backend := &gatedBackend{entered: make(chan struct{}), release: make(chan struct{})}
	ctrl := NewController(&fakeCamera{}, backend, &fakePresenter{}, nil, Options{})
	ctrl.Init(context.Background())

	done := make(chan struct{})
	go func() {
		ctrl.Punch(context.Background())
		close(done)
	}()
	<-backend.entered

	s := ctrl.State()
	if s.Punch.Enabled || s.Punch.Label != models.LabelProcessing || s.Phase != PhaseVerifying {
		t.Errorf("state while busy = %+v", s)
	}
	if _, err := ctrl.Punch(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Punch = %v, want ErrBusy", err)
	}

	close(backend.release)
	<-done
	if s := ctrl.State(); !s.Punch.Enabled {
		t.Errorf("punch not re-enabled: %+v", s)
	}
}

func TestReleaseDuringPunchKeepsButtonDisabled(t *testing.T) {
	backend := &gatedBackend{entered: make(chan struct{}), release: make(chan struct{})}
	ctrl := NewController(&fakeCamera{}, backend, &fakePresenter{}, nil, Options{})
	ctrl.Init(context.Background())

	done := make(chan struct{})
	go func() {
		ctrl.Punch(context.Background())
		close(done)
	}()
	<-backend.entered

	ctrl.Release()
	close(backend.release)
	<-done

	s := ctrl.State()
	if s.CameraActive || s.Punch.Enabled {
		t.Errorf("punch enabled without camera: %+v", s)
	}
	if !s.Punch.Visible || s.Punch.Label != models.LabelPunch || s.Phase != PhaseIdle {
		t.Errorf("punch button not reset: %+v", s)
	}
	if s.Status != StatusStopped {
		t.Errorf("status = %q, want %q", s.Status, StatusStopped)
	}
	if _, err := ctrl.Punch(context.Background()); !errors.Is(err, ErrCameraUnavailable) {
		t.Errorf("Punch() = %v, want ErrCameraUnavailable", err)
	}
}

func TestPunchResetsAfterPanic(t *testing.T) {
	ctrl := NewController(&fakeCamera{}, &gatedBackend{panics: true}, &fakePresenter{}, nil, Options{})
	ctrl.Init(context.Background())

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		ctrl.Punch(context.Background())
	}()

	s := ctrl.State()
	if !s.Punch.Enabled || s.Punch.Label != models.LabelPunch {
		t.Errorf("punch not reset after panic: %+v", s)
	}
	if !ctrl.busy.CompareAndSwap(false, true) {
		t.Error("busy flag left set after panic")
	}
}

func TestInitCameraError(t *testing.T) {
	cam := &fakeCamera{fail: errors.New("NotAllowedError")}
	ctrl := NewController(cam, &gatedBackend{}, &fakePresenter{}, nil, Options{})

	if err := ctrl.Init(context.Background()); err == nil {
		t.Fatal("Init() = nil, want error")
	}
	s := ctrl.State()
	if s.Status != "Camera error: NotAllowedError. Please use manual punch below." {
		t.Errorf("status = %q", s.Status)
	}
	if s.Punch.Enabled {
		t.Error("punch enabled without camera")
	}
	if _, err := ctrl.Punch(context.Background()); !errors.Is(err, ErrCameraUnavailable) {
		t.Errorf("Punch() = %v, want ErrCameraUnavailable", err)
	}
}

func TestInitReadyAndRelease(t *testing.T) {
	ctrl := NewController(&fakeCamera{}, &gatedBackend{}, &fakePresenter{}, nil, Options{})
	ctrl.Init(context.Background())

	if s := ctrl.State(); s.Status != StatusReady || !s.Punch.Enabled || !s.CameraActive {
		t.Errorf("state = %+v", s)
	}

	ctrl.Release()
	if s := ctrl.State(); s.Punch.Enabled || s.CameraActive || s.Status != StatusStopped {
		t.Errorf("state after release = %+v", s)
	}

	// Re-entering the section arms the camera again.
	ctrl.Init(context.Background())
	if s := ctrl.State(); !s.Punch.Enabled || s.Status != StatusReady {
		t.Errorf("state after re-init = %+v", s)
	}
}

// ============================================================
// MANUAL PUNCH
// ============================================================

func TestManualPunch(t *testing.T) {
	f := newFixture(t, &fakeLedger{
		punchStatus: http.StatusCreated,
		punchBody:   `{"ident":"S3 Jane Doe","punch_time":"2024-01-01T01:00:00Z"}`,
	})

	res, err := f.ctrl.ManualPunch(context.Background(), map[string]string{"ident": "S3 Jane Doe", "note": "forgot card"})
	if err != nil {
		t.Fatalf("ManualPunch: %v", err)
	}
	if !res.Success || res.Ident != "S3 Jane Doe" || res.Time != "2024/01/01 09:00:00" {
		t.Errorf("result = %+v", res)
	}

	f.ledger.mu.Lock()
	if f.ledger.fields["note"] != "forgot card" || f.ledger.fields["ident"] != "S3 Jane Doe" {
		t.Errorf("fields = %+v", f.ledger.fields)
	}
	f.ledger.mu.Unlock()

	if s := f.ctrl.State(); s.Manual == nil || !s.Manual.Success {
		t.Errorf("manual result not shown: %+v", s)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.ctrl.State().Manual != nil {
		if time.Now().After(deadline) {
			t.Fatal("manual result never cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManualPunchErrors(t *testing.T) {
	f := newFixture(t, &fakeLedger{punchStatus: http.StatusBadRequest, punchBody: "unknown ident"})

	if _, err := f.ctrl.ManualPunch(context.Background(), map[string]string{"ident": "  "}); !errors.Is(err, ErrMissingIdent) {
		t.Errorf("blank ident = %v, want ErrMissingIdent", err)
	}

	res, err := f.ctrl.ManualPunch(context.Background(), map[string]string{"ident": "nobody"})
	if err == nil {
		t.Fatal("ManualPunch() = nil error for 400")
	}
	if res.Success || res.Error != "Error: unknown ident" {
		t.Errorf("result = %+v", res)
	}
	if f.ledger.punches.Load() != 1 {
		t.Errorf("punches = %d, want 1", f.ledger.punches.Load())
	}
}
