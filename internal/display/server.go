// ============================================================
// DISPLAY SERVER - local HTTP surface of the kiosk
// ============================================================
package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"attendance-kiosk/internal/attendance"
	"attendance-kiosk/internal/enrollment"
	"attendance-kiosk/internal/roster"
	"attendance-kiosk/models"
)

const errInvalidRequestBody = "invalid request body"

type Enrollment interface {
	State() enrollment.State
	UpdateForm(f enrollment.Form) enrollment.State
	SetRole(role models.Role) enrollment.State
	CapturePhoto(ctx context.Context) (enrollment.State, error)
	Retake() enrollment.State
	Submit(ctx context.Context) (enrollment.Result, error)
}

type Attendance interface {
	State() attendance.State
	Punch(ctx context.Context) (attendance.Result, error)
	ManualPunch(ctx context.Context, fields map[string]string) (attendance.ManualResult, error)
}

type People interface {
	Refresh(ctx context.Context) error
	View(query string) roster.View
	Delete(ctx context.Context, ident string) error
}

type Overlays interface {
	State(workflow models.Workflow) models.OverlayState
}

// Navigator switches the visible kiosk section.
type Navigator interface {
	Section() string
	EnterSection(ctx context.Context, section string) error
}

// Deps are the collaborators the surface drives.
type Deps struct {
	Enrollment Enrollment
	Attendance Attendance
	People     People
	Overlays   Overlays
	Sections   Navigator
	Hub        *Hub
	Metrics    http.Handler
	Health     func(ctx context.Context) error
}

// Snapshot is the full kiosk state for a freshly loaded display.
type Snapshot struct {
	Section    string                                  `json:"section"`
	Enrollment enrollment.State                        `json:"enrollment"`
	Attendance attendance.State                        `json:"attendance"`
	Overlays   map[models.Workflow]models.OverlayState `json:"overlays"`
	People     roster.View                             `json:"people"`
}

type Server struct {
	deps       Deps
	router     *chi.Mux
	httpServer *http.Server
}

func NewServer(addr string, deps Deps) *Server {
	r := chi.NewRouter()
	s := &Server{deps: deps, router: r}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics)
	}
	if s.deps.Hub != nil {
		r.Get("/ws", s.deps.Hub.ServeWS)
	}

	r.Route("/api/kiosk", func(r chi.Router) {
		r.Use(chiMiddleware.Logger)

		r.Get("/state", s.handleState)
		r.Post("/sections/{section}", s.handleSection)

		r.Route("/enrollment", func(r chi.Router) {
			r.Put("/form", s.handleForm)
			r.Post("/role", s.handleRole)
			r.Post("/capture", s.handleCapture)
			r.Post("/retake", s.handleRetake)
			r.Post("/submit", s.handleSubmit)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Post("/punch", s.handlePunch)
			r.Post("/manual", s.handleManual)
		})

		r.Get("/people", s.handlePeople)
		r.Delete("/people/{ident}", s.handleDeletePerson)
	})
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	log.Printf("🌐 Kiosk surface on http://%s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down kiosk surface...")
	if s.deps.Hub != nil {
		s.deps.Hub.Close()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ============================================================
// HANDLERS
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "backend": "ok"}
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			resp["backend"] = err.Error()
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) snapshot() Snapshot {
	snap := Snapshot{
		Enrollment: s.deps.Enrollment.State(),
		Attendance: s.deps.Attendance.State(),
		Overlays:   make(map[models.Workflow]models.OverlayState, 2),
		People:     s.deps.People.View(""),
	}
	if s.deps.Sections != nil {
		snap.Section = s.deps.Sections.Section()
	}
	if s.deps.Overlays != nil {
		for _, wf := range []models.Workflow{models.WorkflowEnrollment, models.WorkflowAttendance} {
			snap.Overlays[wf] = s.deps.Overlays.State(wf)
		}
	}
	return snap
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	section := chi.URLParam(r, "section")
	if section != models.SectionPeople && section != models.SectionAttendance {
		respondError(w, http.StatusNotFound, "unknown section "+sanitizeForLog(section))
		return
	}
	// Camera failures are reported through the section state, not here.
	if err := s.deps.Sections.EnterSection(r.Context(), section); err != nil {
		log.Printf("⚠️  Enter section %s: %v", section, err)
	}
	respondJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	var f enrollment.Form
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if f.Role != "" {
		role, err := models.ParseRole(string(f.Role))
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Role = role
	}
	respondJSON(w, http.StatusOK, s.deps.Enrollment.UpdateForm(f))
}

func (s *Server) handleRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.deps.Enrollment.SetRole(role))
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	state, err := s.deps.Enrollment.CapturePhoto(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleRetake(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Enrollment.Retake())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Enrollment.Submit(r.Context())
	if errors.Is(err, enrollment.ErrBusy) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handlePunch(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Attendance.Punch(r.Context())
	switch {
	case errors.Is(err, attendance.ErrBusy):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, attendance.ErrCameraUnavailable):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	res, err := s.deps.Attendance.ManualPunch(r.Context(), fields)
	switch {
	case errors.Is(err, attendance.ErrMissingIdent):
		respondError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		respondJSON(w, http.StatusBadGateway, res)
	default:
		respondJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handlePeople(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "" {
		if err := s.deps.People.Refresh(r.Context()); err != nil {
			respondError(w, http.StatusBadGateway, "Error loading people: "+err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, s.deps.People.View(r.URL.Query().Get("q")))
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	// chi routes on RawPath when it is set, leaving the param escaped.
	ident := chi.URLParam(r, "ident")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(ident)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid ident encoding")
			return
		}
		ident = unescaped
	}
	if strings.TrimSpace(ident) == "" {
		respondError(w, http.StatusBadRequest, "ident is required")
		return
	}

	if err := s.deps.People.Delete(r.Context(), ident); err != nil {
		respondError(w, http.StatusBadGateway, "Error: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.deps.People.View(""))
}

// ============================================================
// HELPERS
// ============================================================

// readFields accepts a JSON object of strings or a form body.
func readFields(r *http.Request) (map[string]string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		fields := map[string]string{}
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			return nil, err
		}
		return fields, nil
	}

	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}
	fields := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}
