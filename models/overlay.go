package models

// ============================================================
// WORKFLOWS & OUTCOMES
// ============================================================

type Workflow string

const (
	WorkflowEnrollment Workflow = "enrollment"
	WorkflowAttendance Workflow = "attendance"
)

type Outcome string

const (
	OutcomeHidden     Outcome = "hidden"
	OutcomeChecking   Outcome = "checking"
	OutcomeProcessing Outcome = "processing"
	OutcomeSuccess    Outcome = "success"
	OutcomeFailure    Outcome = "failure"
)

// InProgress reports whether the outcome holds until superseded.
func (o Outcome) InProgress() bool {
	return o == OutcomeChecking || o == OutcomeProcessing
}

// Icon is the glyph shown next to the overlay text.
func (o Outcome) Icon() string {
	switch o {
	case OutcomeSuccess:
		return "✓"
	case OutcomeFailure:
		return "✗"
	case OutcomeChecking, OutcomeProcessing:
		return "loading"
	}
	return ""
}

// ============================================================
// OVERLAY STATE
// ============================================================

// OverlayState is what a result overlay currently shows. Seq increases on
// every presentation of the workflow.
type OverlayState struct {
	Workflow Workflow `json:"workflow"`
	Outcome  Outcome  `json:"outcome"`
	Icon     string   `json:"icon"`
	Text     string   `json:"text"`
	Detail   string   `json:"detail"`
	Visible  bool     `json:"visible"`
	Seq      uint64   `json:"seq"`
}

// ============================================================
// CONTROLS
// ============================================================

// Control is the presentation state of a button-like affordance.
type Control struct {
	Enabled bool   `json:"enabled"`
	Visible bool   `json:"visible"`
	Label   string `json:"label,omitempty"`
}
