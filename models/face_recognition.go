package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ============================================================
// FACE VERIFICATION
// ============================================================

// VerifyResponse is the body of POST /api/face/verify. The backend sends
// "match" either as a boolean or as the best candidate object (null when
// nothing passed the threshold), so it is kept raw.
type VerifyResponse struct {
	Match      json.RawMessage `json:"match"`
	Ident      string          `json:"ident,omitempty"`
	Score      *float64        `json:"score,omitempty"`
	TopMatches []Candidate     `json:"top_matches,omitempty"`
	FaceCount  int             `json:"face_count,omitempty"`
	UsedModel  string          `json:"used_model,omitempty"`
}

type Candidate struct {
	Ident string  `json:"ident"`
	Score float64 `json:"score"`
}

// VerificationOutcome is the per-attempt reading of a verify response.
type VerificationOutcome struct {
	Match     bool
	Ident     string
	Score     float64
	Threshold float64
}

// HasMatch reports whether "match" is truthy the way the kiosk client reads
// it: null, false, any zero number and "" are false; objects and arrays,
// even empty, are true.
func (r *VerifyResponse) HasMatch() bool {
	if r == nil || len(bytes.TrimSpace(r.Match)) == 0 {
		return false
	}

	var v any
	if err := json.Unmarshal(r.Match, &v); err != nil {
		return false
	}
	switch m := v.(type) {
	case nil:
		return false
	case bool:
		return m
	case float64:
		return m != 0
	case string:
		return m != ""
	}
	return true
}

// Outcome reduces the response to a match decision. A match without an
// ident is not a match.
func (r *VerifyResponse) Outcome(threshold float64) VerificationOutcome {
	out := VerificationOutcome{Threshold: threshold}
	if r == nil {
		return out
	}
	if r.Score != nil {
		out.Score = *r.Score
	}
	out.Ident = r.Ident
	out.Match = r.HasMatch() && r.Ident != ""
	return out
}

// String returns a formatted string representation of the response
func (r *VerifyResponse) String() string {
	if r == nil {
		return "nil"
	}
	score := 0.0
	if r.Score != nil {
		score = *r.Score
	}
	return fmt.Sprintf("Verify{Match: %v, Ident: %q, Score: %.2f, Faces: %d}",
		r.HasMatch(), r.Ident, score, r.FaceCount)
}

// ============================================================
// ATTENDANCE PUNCH
// ============================================================

// PunchResponse is the body of POST /api/punch.
type PunchResponse struct {
	Ident     string `json:"ident"`
	PunchTime string `json:"punch_time"`
}
