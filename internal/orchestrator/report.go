package orchestrator

import (
	"time"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/tracker"
)

// Outcome is the overall result of a scan cycle.
type Outcome string

const (
	OutcomeSuccess Outcome = "success" // every adapter succeeded
	OutcomePartial Outcome = "partial" // at least one adapter succeeded
	OutcomeFailure Outcome = "failure" // none did, or none is registered
)

// PlatformReport is the result of one adapter within a cycle.
type PlatformReport struct {
	Platform     domain.Platform `json:"platform"`
	Installed    tracker.Result  `json:"installed"`
	Owned        *tracker.Result `json:"owned,omitempty"`
	OwnedSkipped bool            `json:"ownedSkipped,omitempty"`
	Attempts     int             `json:"attempts"`
	Duration     time.Duration   `json:"durationNs"`
	Error        string          `json:"error,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
}

// OK reports whether the adapter's install scan succeeded.
func (r PlatformReport) OK() bool { return r.Error == "" }

// CycleReport is the result of one scan cycle.
type CycleReport struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Outcome    Outcome          `json:"outcome"`
	Platforms  []PlatformReport `json:"platforms"`
}

// Failed returns the platforms whose scan failed.
func (r CycleReport) Failed() []domain.Platform {
	var out []domain.Platform
	for _, p := range r.Platforms {
		if !p.OK() {
			out = append(out, p.Platform)
		}
	}
	return out
}

func outcomeOf(reports []PlatformReport) Outcome {
	ok := 0
	for _, r := range reports {
		if r.OK() {
			ok++
		}
	}
	switch {
	case ok == 0:
		return OutcomeFailure
	case ok == len(reports):
		return OutcomeSuccess
	default:
		return OutcomePartial
	}
}

// AuthResult is the result of an authenticate or refresh on one platform.
type AuthResult struct {
	Platform domain.Platform     `json:"platform"`
	State    domain.SessionState `json:"state"`
	Error    string              `json:"error,omitempty"`
}
