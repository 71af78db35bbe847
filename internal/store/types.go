package store

import (
	"context"
	"errors"
)

// Keys under which the rule configuration is persisted
const (
	GroupsKey = "frRuleGroups"
	SlotsKey  = "frGroupHotkeySlots"
)

// Slot bounds for hotkey assignments
const (
	MinSlot = 1
	MaxSlot = 10
)

var (
	// ErrNotFound is returned by KV.Get for a missing key
	ErrNotFound = errors.New("key not found")
	// ErrInvalidSlot is returned for slot numbers outside MinSlot..MaxSlot
	ErrInvalidSlot = errors.New("invalid hotkey slot")
)

// KV is a last-write-wins key-value store
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// SlotMap maps a hotkey slot to a group id. Unassigned slots are absent.
type SlotMap map[int]string
