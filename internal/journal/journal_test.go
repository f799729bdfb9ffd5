package journal

import (
	"path/filepath"
	"testing"
	"time"

	"attendance-kiosk/models"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "data", "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	base := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)

	attempts := []*Attempt{
		{Workflow: models.WorkflowAttendance, Outcome: models.OutcomeSuccess, Ident: "TEACHER Smith", StartedAt: base, Duration: 420 * time.Millisecond},
		{Workflow: models.WorkflowAttendance, Outcome: models.OutcomeFailure, Reason: "no match", StartedAt: base.Add(time.Minute)},
		{Workflow: models.WorkflowEnrollment, Outcome: models.OutcomeFailure, Ident: "A1 Jane Doe", Reason: "Already enrolled", StartedAt: base.Add(2 * time.Minute)},
	}
	for _, a := range attempts {
		if err := j.Record(a); err != nil {
			t.Fatalf("Record: %v", err)
		}
		if a.ID == "" {
			t.Error("Record did not assign an ID")
		}
	}

	got, err := j.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) = %d attempts", len(got))
	}
	if got[0].Reason != "Already enrolled" || got[0].Workflow != models.WorkflowEnrollment {
		t.Errorf("newest = %+v", got[0])
	}
	if got[1].Outcome != models.OutcomeFailure || got[1].Reason != "no match" {
		t.Errorf("second = %+v", got[1])
	}

	all, err := j.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[2].Duration != 420*time.Millisecond || !all[2].StartedAt.Equal(base) {
		t.Errorf("oldest = %+v", all[len(all)-1])
	}
}

func TestNilJournalIsNoop(t *testing.T) {
	var j *Journal
	if err := j.Record(&Attempt{Workflow: models.WorkflowAttendance}); err != nil {
		t.Errorf("Record on nil = %v", err)
	}
	if got, err := j.Recent(5); err != nil || got != nil {
		t.Errorf("Recent on nil = %v, %v", got, err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("Close on nil = %v", err)
	}
}
