package models

import "time"

// ============================================================
// BACKEND API ENDPOINTS
// ============================================================

const (
	APIPeople     = "/api/people"
	APIFaceVerify = "/api/face/verify"
	APIPunch      = "/api/punch"
	APIHealth     = "/health"
)

// ============================================================
// CAPTURE SURFACES
// ============================================================

type Surface string

const (
	SurfacePerson     Surface = "person"
	SurfaceAttendance Surface = "attendance"
)

// ============================================================
// KIOSK SECTIONS
// ============================================================

const (
	SectionPeople     = "people"
	SectionAttendance = "attendance"
)

// ============================================================
// TIMING & FORMAT DEFAULTS
// ============================================================

const (
	DefaultOverlayShowDelay  = 50 * time.Millisecond
	DefaultOverlayWindow     = 3 * time.Second
	DefaultManualResultClear = 5 * time.Second

	DefaultDisplayTimeZone = "Asia/Taipei"

	DisplayDateLayout     = "2006/01/02"
	DisplayTimeLayout     = "15:04:05"
	DisplayDateTimeLayout = "2006/01/02 15:04:05"
)

// ============================================================
// CONTROL LABELS
// ============================================================

const (
	LabelEnroll            = "Enroll Person"
	LabelCapturePhotoFirst = "Capture Photo First"
	LabelPunch             = "Punch"
	LabelProcessing        = "PROCESSING..."
)
