package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"

	"attendance-kiosk/internal/utils"
	"attendance-kiosk/models"
)

// ============================================================
// BACKEND - typed calls against the attendance API
// ============================================================

const (
	CallListPeople   = "list_people"
	CallLookupPerson = "lookup_person"
	CallCreatePerson = "create_person"
	CallDeletePerson = "delete_person"
	CallVerifyFace   = "verify_face"
	CallPunch        = "punch"
	CallManualPunch  = "manual_punch"
	CallHealth       = "health"
)

type Backend struct {
	client *APIClient
}

func NewBackend(client *APIClient) *Backend {
	return &Backend{client: client}
}

// ============================================================
// LOOKUP RESULT
// ============================================================

type LookupStatus int

const (
	LookupTransportError LookupStatus = iota
	LookupFound
	LookupNotFound
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	}
	return "transport_error"
}

// LookupResult tags a duplicate check. It is decided from the status code
// only: 2xx is Found, 404 is NotFound, everything else is TransportError.
type LookupResult struct {
	Status     LookupStatus
	StatusCode int
	Person     *models.PersonRecord
	Err        error
}

// ============================================================
// PEOPLE
// ============================================================

// ListPeople returns the registry in backend order.
func (b *Backend) ListPeople(ctx context.Context) ([]models.PersonRecord, error) {
	body, status, err := b.client.SendRequest(ctx, CallListPeople, http.MethodGet, models.APIPeople, nil, "")
	if err != nil {
		return nil, err
	}
	if !b.client.IsSuccessStatusCode(status) {
		return nil, &StatusError{Call: CallListPeople, Code: status, Body: string(body)}
	}

	var people []models.PersonRecord
	if err := b.client.ParseResponse(body, &people); err != nil {
		return nil, err
	}
	return people, nil
}

// LookupPerson checks whether ident is already registered.
func (b *Backend) LookupPerson(ctx context.Context, ident string) LookupResult {
	endpoint := utils.JoinPath(models.APIPeople, ident)
	body, status, err := b.client.SendRequest(ctx, CallLookupPerson, http.MethodGet, endpoint, nil, "")
	if err != nil {
		log.Printf("❌ Duplicate check failed: %v", err)
		return LookupResult{Status: LookupTransportError, Err: err}
	}

	switch {
	case b.client.IsSuccessStatusCode(status):
		res := LookupResult{Status: LookupFound, StatusCode: status}
		var person models.PersonRecord
		if len(body) > 0 && b.client.ParseResponse(body, &person) == nil {
			res.Person = &person
		}
		return res
	case status == http.StatusNotFound:
		return LookupResult{Status: LookupNotFound, StatusCode: status}
	default:
		b.client.LogResponse(CallLookupPerson, body, status)
		return LookupResult{
			Status:     LookupTransportError,
			StatusCode: status,
			Err:        &StatusError{Call: CallLookupPerson, Code: status, Body: string(body)},
		}
	}
}

// CreatePerson enrolls ident with its face photo.
func (b *Backend) CreatePerson(ctx context.Context, ident, timeZone string, photo []byte) error {
	form := NewMultipartForm().
		Field("ident", ident).
		Field("time_zone", timeZone).
		File("face_photo", "captured.jpg", "image/jpeg", photo)

	body, status, err := b.client.SendMultipart(ctx, CallCreatePerson, http.MethodPost, models.APIPeople, form)
	if err != nil {
		return err
	}
	b.client.LogResponse(CallCreatePerson, body, status)
	if !b.client.IsSuccessStatusCode(status) {
		return &StatusError{Call: CallCreatePerson, Code: status, Body: string(body)}
	}
	return nil
}

// DeletePerson removes ident. The ident is escaped like every other path
// segment.
func (b *Backend) DeletePerson(ctx context.Context, ident string) error {
	endpoint := utils.JoinPath(models.APIPeople, ident)
	body, status, err := b.client.SendRequest(ctx, CallDeletePerson, http.MethodDelete, endpoint, nil, "")
	if err != nil {
		return err
	}
	if !b.client.IsSuccessStatusCode(status) {
		return &StatusError{Call: CallDeletePerson, Code: status, Body: string(body)}
	}
	return nil
}

// ============================================================
// FACE VERIFICATION & PUNCH
// ============================================================

// VerifyFace submits a frame for 1:N matching.
func (b *Backend) VerifyFace(ctx context.Context, image []byte, threshold float64, topK int) (*models.VerifyResponse, error) {
	form := NewMultipartForm().
		File("image", "face.jpg", "image/jpeg", image).
		Field("threshold", strconv.FormatFloat(threshold, 'f', 2, 64)).
		Field("top_k", strconv.Itoa(topK))

	body, status, err := b.client.SendMultipart(ctx, CallVerifyFace, http.MethodPost, models.APIFaceVerify, form)
	if err != nil {
		return nil, err
	}
	b.client.LogResponse(CallVerifyFace, body, status)
	if !b.client.IsSuccessStatusCode(status) {
		return nil, &StatusError{Call: CallVerifyFace, Code: status, Body: string(body)}
	}

	var result models.VerifyResponse
	if err := b.client.ParseResponse(body, &result); err != nil {
		return nil, err
	}
	log.Printf("👤 %s", result.String())
	return &result, nil
}

// Punch records attendance for a verified ident, with the verification
// frame attached as provenance.
func (b *Backend) Punch(ctx context.Context, ident string, image []byte) (*models.PunchResponse, error) {
	form := NewMultipartForm().Field("ident", ident)
	if len(image) > 0 {
		form.File("image", "attendance.jpg", "image/jpeg", image)
	}
	return b.sendPunch(ctx, CallPunch, form)
}

// ManualPunch records attendance from arbitrary form fields.
func (b *Backend) ManualPunch(ctx context.Context, fields map[string]string) (*models.PunchResponse, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	form := NewMultipartForm()
	for _, k := range keys {
		form.Field(k, fields[k])
	}
	return b.sendPunch(ctx, CallManualPunch, form)
}

func (b *Backend) sendPunch(ctx context.Context, call string, form *MultipartForm) (*models.PunchResponse, error) {
	body, status, err := b.client.SendMultipart(ctx, call, http.MethodPost, models.APIPunch, form)
	if err != nil {
		return nil, err
	}
	b.client.LogResponse(call, body, status)
	if !b.client.IsSuccessStatusCode(status) {
		return nil, &StatusError{Call: call, Code: status, Body: string(body)}
	}

	var result models.PunchResponse
	if err := b.client.ParseResponse(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============================================================
// HEALTH
// ============================================================

func (b *Backend) Health(ctx context.Context) error {
	body, status, err := b.client.SendRequest(ctx, CallHealth, http.MethodGet, models.APIHealth, nil, "")
	if err != nil {
		return fmt.Errorf("backend unavailable: %w", err)
	}
	if !b.client.IsSuccessStatusCode(status) {
		return &StatusError{Call: CallHealth, Code: status, Body: string(body)}
	}
	return nil
}
