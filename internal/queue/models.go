package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a task.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusReview     Status = "REVIEW"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusReview,
	StatusSuccess,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Phase identifies which pipeline stage a queued task is waiting for.
type Phase string

const (
	PhasePrepare  Phase = "prepare"
	PhaseFinalize Phase = "finalize"
	PhaseReburn   Phase = "reburn"
)

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParsePhase converts a string into a known Phase.
func ParsePhase(value string) (Phase, bool) {
	switch Phase(strings.ToLower(strings.TrimSpace(value))) {
	case PhasePrepare:
		return PhasePrepare, true
	case PhaseFinalize:
		return PhaseFinalize, true
	case PhaseReburn:
		return PhaseReburn, true
	default:
		return "", false
	}
}

// SubtitleStyle holds the caption rendering parameters persisted per task.
type SubtitleStyle struct {
	FontName      string
	FontSize      int
	FontBold      bool
	FontItalic    bool
	FontUnderline bool
	FontColor     string
	OutlineColor  string
	BackColor     string
	OutlineWidth  float64
	BackOpacity   float64
	Alignment     int
}

// DefaultSubtitleStyle returns the rendering parameters applied to new tasks.
func DefaultSubtitleStyle() SubtitleStyle {
	return SubtitleStyle{
		FontName:     "Noto Sans",
		FontSize:     24,
		FontColor:    "#FFFFFF",
		OutlineColor: "#000000",
		BackColor:    "#000000",
		OutlineWidth: 1.5,
		BackOpacity:  0.6,
		Alignment:    2,
	}
}

// Task represents a translation job persisted in SQLite.
//
// The ownership quadruple (WorkerID, LeaseUntil, HeartbeatAt,
// ProcessingStartedAt) is set together at admission and cleared together when
// the task settles or is rescued. A QUEUED task never carries a worker id.
type Task struct {
	ID        int64
	UserID    int64
	Title     string
	QueuedFor Phase
	Status    Status
	Progress  int
	Msg       string
	ErrorMsg  string

	VideoFile      string
	VocalFile      string
	BgVideoFile    string
	TTSFile        string
	FinalVideoFile string
	VideoDuration  float64

	TargetLanguage     string
	TargetLanguageName string
	SubtitleFormat     string
	BurnSubtitle       bool
	Style              SubtitleStyle
	BgmVolume          float64
	TTSVolume          float64
	TTSVoice           string

	WorkerID            string
	LeaseUntil          *time.Time
	HeartbeatAt         *time.Time
	ProcessingStartedAt *time.Time
	Attempt             int
	MaxAttempts         int

	TranslationConfirmedAt *time.Time
	CreatedAt              time.Time
	EnqueuedAt             *time.Time
	UpdatedAt              time.Time
}

// Subtitle is a single transcript cue belonging to a task.
type Subtitle struct {
	ID             int64
	TaskID         int64
	Sequence       int
	StartTime      float64
	EndTime        float64
	StartTimeSRT   string
	EndTimeSRT     string
	OriginalText   string
	TranslatedText string
}

// HealthSummary describes aggregated task counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Review     int
	Success    int
	Failed     int
}

// OrderKey returns the instant used for FIFO ordering of queued tasks.
func (t *Task) OrderKey() time.Time {
	if t.EnqueuedAt != nil {
		return *t.EnqueuedAt
	}
	return t.CreatedAt
}

// HasOwner reports whether the task currently carries ownership fields.
func (t *Task) HasOwner() bool {
	return t.WorkerID != "" || t.LeaseUntil != nil || t.HeartbeatAt != nil || t.ProcessingStartedAt != nil
}

// RetryLimit returns the per-task retry bound, or fallback when the task does
// not carry one.
func (t *Task) RetryLimit(fallback int) int {
	if t.MaxAttempts > 0 {
		return t.MaxAttempts
	}
	return fallback
}
