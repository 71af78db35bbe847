package session

import (
	"errors"
	"time"

	"github.com/raaihank/regex-relay/internal/store"
)

var (
	ErrNoCurrentGroup = errors.New("no current group")
	ErrGroupDisabled  = errors.New("group is disabled")
	ErrNothingToRun   = errors.New("no enabled rules with patterns")
	ErrEmptyPattern   = errors.New("rule has no pattern")
	ErrGroupNotFound  = errors.New("group not found")
	ErrRuleNotFound   = errors.New("rule not found")
	ErrInvalidSlot    = store.ErrInvalidSlot
)

// DefaultPersistDelay is the quiet period after a field edit before the
// groups are written back
const DefaultPersistDelay = 400 * time.Millisecond

// persistTimeout bounds a write triggered by the debounce timer
const persistTimeout = 5 * time.Second

// RulePatch carries the rule fields to change. Nil fields are left alone.
type RulePatch struct {
	Pattern     *string `json:"pattern,omitempty"`
	Replacement *string `json:"replacement,omitempty"`
	Flags       *string `json:"flags,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
}

// GroupPatch carries the group fields to change. Nil fields are left alone.
type GroupPatch struct {
	Name    *string `json:"name,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p RulePatch) Empty() bool {
	return p.Pattern == nil && p.Replacement == nil && p.Flags == nil && p.Enabled == nil
}

// Empty reports whether the patch changes nothing
func (p GroupPatch) Empty() bool {
	return p.Name == nil && p.Enabled == nil
}
