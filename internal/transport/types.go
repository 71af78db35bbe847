package transport

import (
	"context"
	"errors"
	"time"

	"github.com/raaihank/regex-relay/internal/engine"
	"github.com/raaihank/regex-relay/internal/rules"
)

// Message types exchanged with page agents
const (
	TypeRun    = "FR_RUN"
	TypeResult = "FR_RESULT"
	TypeAttach = "FR_ATTACH"
	TypeReady  = "FR_READY"
	TypeError  = "FR_ERROR"
)

// Default exchange timeouts
const (
	DefaultTimeout       = 1200 * time.Millisecond
	DefaultAttachTimeout = 5 * time.Second
)

var (
	// ErrNoResponse is returned when the page did not answer, even after a
	// re-attach and retry
	ErrNoResponse = errors.New("No response (content script not injected?)")
	// ErrNoActiveTarget is returned when there is no page to run against
	ErrNoActiveTarget = errors.New("no active page")
	// ErrAttachFailed wraps a failed re-attach
	ErrAttachFailed = errors.New("Injection failed")
)

// Message is the envelope of every agent exchange. Requests and their
// responses share an ID.
type Message struct {
	Type   string            `json:"type"`
	ID     string            `json:"id,omitempty"`
	Groups []rules.RunGroup  `json:"groups,omitempty"`
	Result *engine.RunResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Target is one page execution context that can run rule groups
type Target interface {
	// Send delivers a run request and waits for its result. A nil result
	// with a nil error means the page did not answer.
	Send(ctx context.Context, groups []rules.RunGroup) (*engine.RunResult, error)
	// Attach (re)installs the agent on the page
	Attach(ctx context.Context) error
}

// Resolver finds the page runs are delivered to
type Resolver interface {
	ActiveTarget(ctx context.Context) (Target, error)
}

// Config contains dispatcher timeouts
type Config struct {
	Timeout       time.Duration
	AttachTimeout time.Duration
}
