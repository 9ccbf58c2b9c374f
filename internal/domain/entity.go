// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"strings"
	"time"
)

// Provenance records where a MonitoredApp came from.
type Provenance string

const (
	ProvenanceBuiltin Provenance = "builtin"
	ProvenanceCustom  Provenance = "custom"
)

// MonitoredApp is an application whose target interface is gated.
// Built-in and user-added apps share this one shape; Provenance is only a tag.
type MonitoredApp struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	TargetPhrases     []string   `json:"target_phrases"`
	ProcessNames      []string   `json:"process_names,omitempty"` // Used by the liveness poll
	DailyRelaxedQuota int        `json:"daily_relaxed_quota"`
	ChallengeExempt   bool       `json:"challenge_exempt"`
	Provenance        Provenance `json:"provenance"`
}

// HasPhrases reports whether the app has at least one non-blank target phrase.
func (a MonitoredApp) HasPhrases() bool {
	for _, p := range a.TargetPhrases {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

// InterfaceState is the tri-state reading produced by content detection.
type InterfaceState int

const (
	InterfaceUnknown InterfaceState = iota
	InterfaceTarget
	InterfaceNotTarget
)

func (s InterfaceState) String() string {
	switch s {
	case InterfaceTarget:
		return "target"
	case InterfaceNotTarget:
		return "not_target"
	default:
		return "unknown"
	}
}

// GatePhase is the per-app position in the gate state machine.
type GatePhase string

const (
	PhaseIdle       GatePhase = "idle"
	PhaseCooling    GatePhase = "cooling"
	PhaseEvaluating GatePhase = "evaluating"
	PhaseShown      GatePhase = "shown"
	PhaseChallenge  GatePhase = "challenge"
)

// OverlayVisible reports whether the overlay is on screen in this phase.
func (p GatePhase) OverlayVisible() bool {
	return p == PhaseShown || p == PhaseChallenge
}

// GateState is the persisted per-app gating record.
type GateState struct {
	AppID                 string
	ConfiguredInterval    time.Duration
	LastCloseTime         time.Time
	LastCloseInterval     time.Duration
	RelaxedCloseCount     int
	RelaxedCloseCountDate string // YYYY-MM-DD, empty when never used
	InterfaceState        InterfaceState
}

// HiddenUntil is the end of the current cooldown, zero if never closed.
func (s GateState) HiddenUntil() time.Time {
	if s.LastCloseTime.IsZero() {
		return time.Time{}
	}
	return s.LastCloseTime.Add(s.LastCloseInterval)
}

// CoolingAt reports whether t falls inside the cooldown.
func (s GateState) CoolingAt(t time.Time) bool {
	until := s.HiddenUntil()
	return !until.IsZero() && t.Before(until)
}

// ActiveAppSelection names the monitored app currently in the foreground.
// The zero value means no monitored app is active.
type ActiveAppSelection struct {
	AppID string
	Since time.Time
}

// IsActive reports whether appID is the selected app.
func (s ActiveAppSelection) IsActive(appID string) bool {
	return s.AppID != "" && s.AppID == appID
}

// ChallengeSession is the question shown on the overlay's challenge panel.
type ChallengeSession struct {
	ID        string
	AppID     string
	Question  string
	Answer    int
	Active    bool // false while a replacement question is pending
	CreatedAt time.Time
}

// Operator is an arithmetic challenge operator.
type Operator string

const (
	OpAdd Operator = "+"
	OpSub Operator = "-"
	OpMul Operator = "*"
)

// Difficulty configures operand digit counts per operator. Zero disables the operator.
type Difficulty struct {
	AdditionDigits       int
	SubtractionDigits    int
	MultiplicationDigits int
}

// IntentKind identifies what the overlay renderer is asked to do.
type IntentKind string

const (
	IntentShow      IntentKind = "show"
	IntentHide      IntentKind = "hide"
	IntentChallenge IntentKind = "challenge"
	IntentQuota     IntentKind = "quota"
)

// Intent is emitted by the gate for out-of-process consumers.
type Intent struct {
	Kind      IntentKind `json:"kind"`
	AppID     string     `json:"app"`
	Question  string     `json:"question,omitempty"`
	Remaining int        `json:"remaining"`
	At        time.Time  `json:"at"`
}

// SignalKind identifies an inbound event.
type SignalKind string

const (
	SignalForeground SignalKind = "foreground"
	SignalContent    SignalKind = "content"
	SignalDismiss    SignalKind = "dismiss"
	SignalAnswer     SignalKind = "answer"
	SignalCancel     SignalKind = "cancel"
	SignalForce      SignalKind = "force"
)

// Signal is one raw event fed to the engine.
type Signal struct {
	Kind   SignalKind `json:"type"`
	AppID  string     `json:"app"`
	At     time.Time  `json:"at"`
	Answer string     `json:"answer,omitempty"`
}

// EngineEntry is the on-disk record of the running engine.
type EngineEntry struct {
	PID           int    `json:"pid"`
	Version       string `json:"version"`
	Mode          string `json:"mode"`
	StartedAt     int64  `json:"started_at"`
	LastHeartbeat int64  `json:"last_heartbeat"`
}
