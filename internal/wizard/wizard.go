package wizard

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound   = errors.New("wizard: session not found")
	ErrInvalidTransition = errors.New("wizard: action not allowed in current step")
	ErrGateLocked        = errors.New("wizard: result is locked until the lead form is submitted")
	ErrUnknownOption     = errors.New("wizard: unknown style or shade")
	ErrNoPhoto           = errors.New("wizard: no photo in session")
	ErrCaptureActive     = errors.New("wizard: camera capture already running")
	ErrNoCapture         = errors.New("wizard: no camera capture running")
	ErrLeadPending       = errors.New("wizard: lead submission already in progress")
)

type Step int

const (
	StepChooseStyle Step = iota + 1
	StepChooseShade
	StepUploadPhoto
	StepGenerating
	StepResult
)

func (s Step) String() string {
	switch s {
	case StepChooseStyle:
		return "choose_style"
	case StepChooseShade:
		return "choose_shade"
	case StepUploadPhoto:
		return "upload_photo"
	case StepGenerating:
		return "generating"
	case StepResult:
		return "result"
	default:
		return "unknown"
	}
}

type Flow string

const (
	FlowWizard Flow = "wizard"
	FlowQuick  Flow = "quick"
)

func ParseFlow(v string) (Flow, bool) {
	switch Flow(v) {
	case "", FlowWizard:
		return FlowWizard, true
	case FlowQuick:
		return FlowQuick, true
	}
	return "", false
}

type Selection struct {
	StyleID string `json:"style_id,omitempty"`
	ShadeID string `json:"shade_id,omitempty"`
}

func (s Selection) complete() bool {
	return s.StyleID != "" && s.ShadeID != ""
}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one generation request. It reaches a terminal status exactly once.
type Job struct {
	ID          string
	ShadeHex    string
	StyleID     string
	Status      JobStatus
	SubmittedAt time.Time
	FinishedAt  *time.Time
	ResultURL   string
	Err         string
}

type JobView struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// View is a point-in-time copy of a session. AfterURL stays empty while the
// lead gate is closed.
type View struct {
	ID           string
	VisitorID    string
	Flow         Flow
	Step         Step
	Selection    Selection
	HasPhoto     bool
	Capturing    bool
	Job          *JobView
	AfterURL     string
	Gated        bool
	UsedFallback bool
	LastError    string
}

// LeadForm is what the visitor types into the gate.
type LeadForm struct {
	Name          string
	Phone         string
	CountryCode   string
	Email         string
	FreeTreatment *bool
}

// Options tunes timing and fallbacks. Zero values take the defaults.
type Options struct {
	EdgeLength        int
	SelectionDelay    time.Duration
	PhotoDelay        time.Duration
	GenerationTimeout time.Duration
	CaptureTimeout    time.Duration
	SessionTTL        time.Duration
	WizardFallbackURL string
	QuickFallbackURL  string
}

const (
	DefaultGenerationTimeout = 120 * time.Second
	DefaultCaptureTimeout    = 2 * time.Minute
	DefaultSessionTTL        = time.Hour
	DefaultWizardFallbackURL = "/hero/good1.webp"
	DefaultQuickFallbackURL  = "/hero/good1.png"
)

func (o Options) withDefaults() Options {
	if o.EdgeLength <= 0 {
		o.EdgeLength = 1024
	}
	if o.SelectionDelay < 0 {
		o.SelectionDelay = 0
	}
	if o.PhotoDelay < 0 {
		o.PhotoDelay = 0
	}
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = DefaultGenerationTimeout
	}
	if o.CaptureTimeout <= 0 {
		o.CaptureTimeout = DefaultCaptureTimeout
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
	if o.WizardFallbackURL == "" {
		o.WizardFallbackURL = DefaultWizardFallbackURL
	}
	if o.QuickFallbackURL == "" {
		o.QuickFallbackURL = DefaultQuickFallbackURL
	}
	return o
}
