package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/rules"
)

// Repository reads and writes rule groups and hotkey slots in a KV store
type Repository struct {
	kv     KV
	logger *zap.Logger
}

// NewRepository wraps a KV store
func NewRepository(kv KV, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{kv: kv, logger: logger}
}

// LoadGroups returns the persisted groups, sanitized. A missing key yields
// an empty list.
func (r *Repository) LoadGroups(ctx context.Context) ([]rules.RuleGroup, error) {
	raw, err := r.kv.Get(ctx, GroupsKey)
	if errors.Is(err, ErrNotFound) {
		return []rules.RuleGroup{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		r.logger.Warn("Stored groups are corrupt, starting empty", zap.Error(err))
		return []rules.RuleGroup{}, nil
	}

	return rules.SanitizeAny(items), nil
}

// SaveGroups replaces the persisted groups
func (r *Repository) SaveGroups(ctx context.Context, groups []rules.RuleGroup) error {
	if groups == nil {
		groups = []rules.RuleGroup{}
	}

	data, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("failed to encode groups: %w", err)
	}

	if err := r.kv.Set(ctx, GroupsKey, data); err != nil {
		return fmt.Errorf("failed to save groups: %w", err)
	}

	r.logger.Debug("Groups saved", zap.Int("groups", len(groups)))
	return nil
}

// LoadSlots returns the hotkey slot assignments. Entries with a slot outside
// the valid range or an empty group id are dropped.
func (r *Repository) LoadSlots(ctx context.Context) (SlotMap, error) {
	slots := SlotMap{}

	raw, err := r.kv.Get(ctx, SlotsKey)
	if errors.Is(err, ErrNotFound) {
		return slots, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load slots: %w", err)
	}

	var stored map[string]string
	if err := json.Unmarshal(raw, &stored); err != nil {
		r.logger.Warn("Stored slots are corrupt, starting empty", zap.Error(err))
		return slots, nil
	}

	for k, groupID := range stored {
		slot, err := strconv.Atoi(k)
		if err != nil || !ValidSlot(slot) || groupID == "" {
			continue
		}
		slots[slot] = groupID
	}
	return slots, nil
}

// SaveSlots replaces the hotkey slot assignments
func (r *Repository) SaveSlots(ctx context.Context, slots SlotMap) error {
	stored := make(map[string]string, len(slots))
	for slot, groupID := range slots {
		if groupID == "" {
			continue
		}
		stored[strconv.Itoa(slot)] = groupID
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode slots: %w", err)
	}

	if err := r.kv.Set(ctx, SlotsKey, data); err != nil {
		return fmt.Errorf("failed to save slots: %w", err)
	}
	return nil
}

// AssignSlot binds groupID to slot after clearing any slot the group held.
// Slot 0 only clears. The updated map is returned.
func (r *Repository) AssignSlot(ctx context.Context, groupID string, slot int) (SlotMap, error) {
	if slot != 0 && !ValidSlot(slot) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}

	slots, err := r.LoadSlots(ctx)
	if err != nil {
		return nil, err
	}

	slots.Assign(groupID, slot)

	if err := r.SaveSlots(ctx, slots); err != nil {
		return nil, err
	}

	r.logger.Info("Hotkey slot updated", zap.String("group_id", groupID), zap.Int("slot", slot))
	return slots, nil
}

// GroupForSlot returns the group id bound to slot, or "" when unassigned
func (r *Repository) GroupForSlot(ctx context.Context, slot int) (string, error) {
	if !ValidSlot(slot) {
		return "", fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}

	slots, err := r.LoadSlots(ctx)
	if err != nil {
		return "", err
	}
	return slots[slot], nil
}

// ValidSlot reports whether slot is within MinSlot..MaxSlot
func ValidSlot(slot int) bool {
	return slot >= MinSlot && slot <= MaxSlot
}

// Assign clears every slot held by groupID, then binds slot when non-zero
func (s SlotMap) Assign(groupID string, slot int) {
	for k, v := range s {
		if v == groupID {
			delete(s, k)
		}
	}
	if slot != 0 {
		s[slot] = groupID
	}
}

// SlotOf returns the slot bound to groupID, or 0
func (s SlotMap) SlotOf(groupID string) int {
	for _, slot := range s.Sorted() {
		if s[slot] == groupID {
			return slot
		}
	}
	return 0
}

// Sorted returns the assigned slots in ascending order
func (s SlotMap) Sorted() []int {
	out := make([]int, 0, len(s))
	for slot := range s {
		out = append(out, slot)
	}
	sort.Ints(out)
	return out
}

// Prune drops assignments pointing at groups not in ids
func (s SlotMap) Prune(ids map[string]bool) {
	for k, v := range s {
		if !ids[v] {
			delete(s, k)
		}
	}
}
