// ============================================================
// ROSTER - enrolled people list projection
// ============================================================
package roster

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // Asia/Taipei on hosts without zoneinfo

	"golang.org/x/text/cases"

	"attendance-kiosk/models"
)

const (
	NotSet       = "Not set"
	EmptyMessage = "No people enrolled yet. Add someone above!"
)

// Backend is the part of the API the roster needs.
type Backend interface {
	ListPeople(ctx context.Context) ([]models.PersonRecord, error)
	DeletePerson(ctx context.Context, ident string) error
}

// Row is one rendered roster line.
type Row struct {
	Ident    string `json:"ident"`
	TimeZone string `json:"time_zone"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

// View is the filtered roster as shown to the operator.
type View struct {
	Query   string `json:"query"`
	Rows    []Row  `json:"rows"`
	Label   string `json:"label"`
	Message string `json:"message,omitempty"`
}

type Roster struct {
	backend  Backend
	loc      *time.Location
	onChange func(View)

	mu     sync.RWMutex
	people []models.PersonRecord
	loaded bool
}

// New creates a roster rendering times in loc (Asia/Taipei when nil).
func New(backend Backend, loc *time.Location) *Roster {
	if loc == nil {
		loc = MustLocation(models.DefaultDisplayTimeZone)
	}
	return &Roster{backend: backend, loc: loc}
}

// OnChange registers fn to receive the unfiltered view after every refresh.
func (r *Roster) OnChange(fn func(View)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Refresh reloads the people list from the backend.
func (r *Roster) Refresh(ctx context.Context) error {
	people, err := r.backend.ListPeople(ctx)
	if err != nil {
		log.Printf("❌ Error loading people: %v", err)
		return err
	}
	people = Sort(people)

	r.mu.Lock()
	r.people = people
	r.loaded = true
	fn := r.onChange
	r.mu.Unlock()

	log.Printf("📋 Loaded %d people", len(people))
	if fn != nil {
		fn(r.View(""))
	}
	return nil
}

// Delete removes ident from the backend and refreshes the list.
func (r *Roster) Delete(ctx context.Context, ident string) error {
	if err := r.backend.DeletePerson(ctx, ident); err != nil {
		return err
	}
	log.Printf("🗑️  Deleted %s", ident)
	return r.Refresh(ctx)
}

// People returns the sorted people list from the last refresh.
func (r *Roster) People() []models.PersonRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.PersonRecord(nil), r.people...)
}

// View filters the cached list by query.
func (r *Roster) View(query string) View {
	r.mu.RLock()
	people := r.people
	r.mu.RUnlock()

	visible := Filter(people, query)
	v := View{
		Query: query,
		Rows:  make([]Row, 0, len(visible)),
		Label: CountLabel(query, len(visible), len(people)),
	}
	for _, p := range visible {
		v.Rows = append(v.Rows, FormatRow(p, r.loc))
	}
	if len(people) == 0 {
		v.Message = EmptyMessage
	}
	return v
}

// Sort orders people by updated_at, newest first. Unparseable timestamps
// sort last, keeping their relative order.
func Sort(people []models.PersonRecord) []models.PersonRecord {
	out := append([]models.PersonRecord(nil), people...)
	keys := make(map[string]time.Time, len(out))
	for _, p := range out {
		if t, err := models.ParseTimestamp(p.UpdatedAt); err == nil {
			keys[p.UpdatedAt] = t
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := keys[out[i].UpdatedAt]
		tj, okJ := keys[out[j].UpdatedAt]
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})
	return out
}

// Filter keeps people whose ident contains query, ignoring case.
func Filter(people []models.PersonRecord, query string) []models.PersonRecord {
	if query == "" {
		return people
	}
	fold := cases.Fold()
	needle := fold.String(query)

	out := make([]models.PersonRecord, 0, len(people))
	for _, p := range people {
		if strings.Contains(fold.String(p.Ident), needle) {
			out = append(out, p)
		}
	}
	return out
}

// CountLabel renders the count line under the roster.
func CountLabel(query string, visible, total int) string {
	noun := "people"
	if total == 1 {
		noun = "person"
	}
	if query != "" {
		return fmt.Sprintf("Showing: %d of %d %s", visible, total, noun)
	}
	return fmt.Sprintf("Total: %d %s", total, noun)
}

// FormatRow renders p with created_at in loc.
func FormatRow(p models.PersonRecord, loc *time.Location) Row {
	row := Row{Ident: p.Ident, TimeZone: p.TimeZone}
	if row.TimeZone == "" {
		row.TimeZone = NotSet
	}
	if t, err := models.ParseTimestamp(p.CreatedAt); err == nil {
		t = t.In(loc)
		row.Date = t.Format(models.DisplayDateLayout)
		row.Time = t.Format(models.DisplayTimeLayout)
	}
	return row
}

// FormatDateTime renders an API timestamp in loc, or "" when it is missing
// or unparseable.
func FormatDateTime(s string, loc *time.Location) string {
	t, err := models.ParseTimestamp(s)
	if err != nil {
		return ""
	}
	return t.In(loc).Format(models.DisplayDateTimeLayout)
}

// MustLocation loads a zone, falling back to UTC when it is unknown.
func MustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("⚠️  Unknown time zone %q, using UTC", name)
		return time.UTC
	}
	return loc
}
