package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SnackType selects the notification style
type SnackType string

const (
	SnackNone    SnackType = "none"
	SnackInfo    SnackType = "info"
	SnackSuccess SnackType = "success"
	SnackWarning SnackType = "warning"
	SnackError   SnackType = "error"
)

// SnackAlign is the placement hint
type SnackAlign string

const (
	AlignAuto   SnackAlign = "auto"
	AlignTop    SnackAlign = "top"
	AlignBottom SnackAlign = "bottom"
)

// DefaultSnackDuration applies when a caller passes zero
const DefaultSnackDuration = 3000

// Notification is the payload of a "snack" event
type Notification struct {
	ID        string     `json:"id"`
	Message   string     `json:"message"`
	Type      SnackType  `json:"type"`
	Duration  uint64     `json:"duration"` // milliseconds
	Align     SnackAlign `json:"align"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ParseSnackType accepts any casing and falls back to none
func ParseSnackType(s string) SnackType {
	switch t := SnackType(strings.ToLower(strings.TrimSpace(s))); t {
	case SnackInfo, SnackSuccess, SnackWarning, SnackError:
		return t
	default:
		return SnackNone
	}
}

// ParseSnackAlign accepts any casing and falls back to auto
func ParseSnackAlign(s string) SnackAlign {
	switch a := SnackAlign(strings.ToLower(strings.TrimSpace(s))); a {
	case AlignTop, AlignBottom:
		return a
	default:
		return AlignAuto
	}
}

// NewNotification builds a normalised notification
func NewNotification(message, snackType string, duration uint64, align string) Notification {
	if duration == 0 {
		duration = DefaultSnackDuration
	}
	return Notification{
		ID:        uuid.New().String(),
		Message:   message,
		Type:      ParseSnackType(snackType),
		Duration:  duration,
		Align:     ParseSnackAlign(align),
		CreatedAt: time.Now(),
	}
}

// EmitSnack relays a notification to e
func EmitSnack(e Emitter, n Notification) {
	e.Emit(Snack, n)
}
