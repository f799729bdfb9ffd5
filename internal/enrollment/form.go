package enrollment

import (
	"strings"

	"attendance-kiosk/models"
)

// Form is the enrollment form as entered by the operator.
type Form struct {
	Role      models.Role `json:"role"`
	School    string      `json:"school"`
	Year      string      `json:"year"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Name      string      `json:"name"`
	TimeZone  string      `json:"time_zone"`
}

// DefaultForm is the empty student form.
func DefaultForm(timeZone string) Form {
	return Form{Role: models.RoleStudent, TimeZone: timeZone}
}

// Ident derives the registry key from the form. Fields are trimmed.
func (f Form) Ident() string {
	switch f.Role {
	case models.RoleStudent:
		return strings.TrimSpace(f.School) + strings.TrimSpace(f.Year) + " " +
			strings.TrimSpace(f.FirstName) + " " + strings.TrimSpace(f.LastName)
	case models.RoleTeacher:
		return "TEACHER " + strings.TrimSpace(f.Name)
	case models.RoleStaff:
		return "STAFF " + strings.TrimSpace(f.Name)
	}
	return ""
}

// Complete reports whether every field the role requires is non-blank.
func (f Form) Complete() bool {
	if blank(f.TimeZone) {
		return false
	}
	switch f.Role {
	case models.RoleStudent:
		return !blank(f.School) && !blank(f.Year) && !blank(f.FirstName) && !blank(f.LastName)
	case models.RoleTeacher, models.RoleStaff:
		return !blank(f.Name)
	}
	return false
}

// WithRole switches role and clears the fields only the other role uses.
func (f Form) WithRole(role models.Role) Form {
	f.Role = role
	if role == models.RoleStudent {
		f.Name = ""
	} else {
		f.School, f.Year, f.FirstName, f.LastName = "", "", "", ""
	}
	return f
}

// SubmitControl is the submit button for the given form and photo state.
func SubmitControl(complete, hasPhoto bool) models.Control {
	switch {
	case complete && hasPhoto:
		return models.Control{Enabled: true, Visible: true, Label: models.LabelEnroll}
	case complete:
		return models.Control{Visible: true, Label: models.LabelCapturePhotoFirst}
	default:
		return models.Control{Visible: true, Label: models.LabelEnroll}
	}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
