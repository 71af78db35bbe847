package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/rules"
	"github.com/raaihank/regex-relay/internal/store"
)

// Session is the editing state of the rule configuration: the ordered
// groups, the selected group and the hotkey slot map. Structural changes
// are written through immediately; field edits are written after a quiet
// period.
type Session struct {
	mu      sync.Mutex
	repo    *store.Repository
	logger  *zap.Logger
	delay   time.Duration
	groups  []rules.RuleGroup
	current string
	slots   store.SlotMap
	timer   *time.Timer
	dirty   bool
}

// New creates a session over repo. A negative delay selects the default.
func New(repo *store.Repository, delay time.Duration, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if delay < 0 {
		delay = DefaultPersistDelay
	}
	return &Session{
		repo:   repo,
		logger: logger,
		delay:  delay,
		slots:  store.SlotMap{},
	}
}

// Load reads groups and slots from the store. An empty configuration gets
// one unsaved placeholder group, and the first group becomes current.
func (s *Session) Load(ctx context.Context) error {
	groups, err := s.repo.LoadGroups(ctx)
	if err != nil {
		return err
	}
	slots, err := s.repo.LoadSlots(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(groups) == 0 {
		groups = append(groups, rules.NewGroup())
	}
	s.groups = groups
	s.slots = slots
	s.current = ""
	s.ensureCurrentLocked()

	s.logger.Info("Session loaded",
		zap.Int("groups", len(s.groups)),
		zap.Int("slots", len(s.slots)),
		zap.String("current", s.current))
	return nil
}

// Groups returns a copy of all groups in order
func (s *Session) Groups() []rules.RuleGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneGroups(s.groups)
}

// Group returns a copy of the group with the given id
func (s *Session) Group(id string) (rules.RuleGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(id)
	if i < 0 {
		return rules.RuleGroup{}, ErrGroupNotFound
	}
	return s.groups[i].Clone(), nil
}

// Current returns the selected group
func (s *Session) Current() (rules.RuleGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(s.current)
	if i < 0 {
		return rules.RuleGroup{}, ErrNoCurrentGroup
	}
	return s.groups[i].Clone(), nil
}

// CurrentID returns the id of the selected group, or ""
func (s *Session) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Select makes the group with the given id current
func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.groupIndex(id) < 0 {
		return ErrGroupNotFound
	}
	s.current = id
	return nil
}

// AddGroup appends a new enabled group with one placeholder rule and
// selects it
func (s *Session) AddGroup(ctx context.Context, name string) (rules.RuleGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := rules.NewGroup()
	if name != "" {
		g.Name = name
	}
	s.groups = append(s.groups, g)
	s.current = g.ID

	return g.Clone(), s.saveLocked(ctx)
}

// DeleteGroup removes a group and its slot assignment. The neighbor at the
// same position, or the new last group, becomes current.
func (s *Session) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(id)
	if i < 0 {
		return ErrGroupNotFound
	}

	s.groups = append(s.groups[:i], s.groups[i+1:]...)
	switch {
	case len(s.groups) == 0:
		s.current = ""
	case s.current == id:
		s.current = s.groups[min(i, len(s.groups)-1)].ID
	}

	if err := s.saveLocked(ctx); err != nil {
		return err
	}

	if s.slots.SlotOf(id) != 0 {
		slots, err := s.repo.AssignSlot(ctx, id, 0)
		if err != nil {
			return err
		}
		s.slots = slots
	}
	return nil
}

// MoveGroup shifts a group by delta positions. Moves past either end are
// ignored.
func (s *Session) MoveGroup(ctx context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(id)
	if i < 0 {
		return ErrGroupNotFound
	}
	if !moveItem(s.groups, i, i+delta) {
		return nil
	}
	return s.saveLocked(ctx)
}

// UpdateGroup changes a group's name or enabled state. The write is
// debounced.
func (s *Session) UpdateGroup(id string, patch GroupPatch) (rules.RuleGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(id)
	if i < 0 {
		return rules.RuleGroup{}, ErrGroupNotFound
	}

	g := &s.groups[i]
	if patch.Name != nil {
		g.Name = *patch.Name
	}
	if patch.Enabled != nil {
		g.Enabled = *patch.Enabled
	}
	if !patch.Empty() {
		s.schedulePersistLocked()
	}
	return g.Clone(), nil
}

// RenameGroup sets a group's name, debounced
func (s *Session) RenameGroup(id, name string) error {
	_, err := s.UpdateGroup(id, GroupPatch{Name: &name})
	return err
}

// SetGroupEnabled toggles a group, debounced
func (s *Session) SetGroupEnabled(id string, enabled bool) error {
	_, err := s.UpdateGroup(id, GroupPatch{Enabled: &enabled})
	return err
}

// AddRule appends a placeholder rule to a group
func (s *Session) AddRule(ctx context.Context, groupID string) (rules.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(groupID)
	if i < 0 {
		return rules.Rule{}, ErrGroupNotFound
	}

	r := rules.NewRule()
	s.groups[i].Rules = append(s.groups[i].Rules, r)
	return r, s.saveLocked(ctx)
}

// DeleteRule removes a rule. A group left without rules gets a fresh
// placeholder.
func (s *Session) DeleteRule(ctx context.Context, groupID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gi, ri, err := s.ruleIndex(groupID, ruleID)
	if err != nil {
		return err
	}

	g := &s.groups[gi]
	g.Rules = append(g.Rules[:ri], g.Rules[ri+1:]...)
	if len(g.Rules) == 0 {
		g.Rules = []rules.Rule{rules.NewRule()}
	}
	return s.saveLocked(ctx)
}

// MoveRule shifts a rule within its group by delta positions. Moves past
// either end are ignored.
func (s *Session) MoveRule(ctx context.Context, groupID, ruleID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gi, ri, err := s.ruleIndex(groupID, ruleID)
	if err != nil {
		return err
	}
	if !moveItem(s.groups[gi].Rules, ri, ri+delta) {
		return nil
	}
	return s.saveLocked(ctx)
}

// UpdateRule edits rule fields. Flags are stored as typed; they are only
// cleaned on load and import. The write is debounced.
func (s *Session) UpdateRule(groupID, ruleID string, patch RulePatch) (rules.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gi, ri, err := s.ruleIndex(groupID, ruleID)
	if err != nil {
		return rules.Rule{}, err
	}

	r := &s.groups[gi].Rules[ri]
	if patch.Pattern != nil {
		r.Pattern = *patch.Pattern
	}
	if patch.Replacement != nil {
		r.Replacement = *patch.Replacement
	}
	if patch.Flags != nil {
		r.Flags = *patch.Flags
	}
	if patch.Enabled != nil {
		r.Enabled = *patch.Enabled
	}
	if !patch.Empty() {
		s.schedulePersistLocked()
	}
	return *r, nil
}

// AssignSlot binds a group to a hotkey slot, clearing any slot it held.
// Slot 0 removes the assignment.
func (s *Session) AssignSlot(ctx context.Context, groupID string, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.groupIndex(groupID) < 0 {
		return ErrGroupNotFound
	}

	slots, err := s.repo.AssignSlot(ctx, groupID, slot)
	if err != nil {
		return err
	}
	s.slots = slots
	return nil
}

// SlotOf returns the slot bound to a group, or 0
func (s *Session) SlotOf(groupID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots.SlotOf(groupID)
}

// Slots returns a copy of the slot map
func (s *Session) Slots() store.SlotMap {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(store.SlotMap, len(s.slots))
	for k, v := range s.slots {
		out[k] = v
	}
	return out
}

// Import replaces every group with the given ones after sanitizing them
func (s *Session) Import(ctx context.Context, groups []rules.RuleGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups = rules.Sanitize(groups)
	s.ensureCurrentLocked()

	s.logger.Info("Groups imported", zap.Int("groups", len(s.groups)))
	return s.saveLocked(ctx)
}

// Export returns a copy of the groups for serialization
func (s *Session) Export() []rules.RuleGroup {
	return s.Groups()
}

// RunRequest builds the run request for the current group
func (s *Session) RunRequest() ([]rules.RunGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(s.current)
	if i < 0 {
		return nil, ErrNoCurrentGroup
	}
	return groupRequest(s.groups[i])
}

// GroupRunRequest builds the run request for the group with the given id
func (s *Session) GroupRunRequest(groupID string) ([]rules.RunGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(groupID)
	if i < 0 {
		return nil, ErrGroupNotFound
	}
	return groupRequest(s.groups[i])
}

// RuleRunRequest builds a request running one rule on its own. The rule is
// sent enabled regardless of its stored state, and the group's enabled
// state is not consulted.
func (s *Session) RuleRunRequest(groupID, ruleID string) ([]rules.RunGroup, rules.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gi, ri, err := s.ruleIndex(groupID, ruleID)
	if err != nil {
		return nil, rules.Rule{}, err
	}

	r := s.groups[gi].Rules[ri]
	if r.Pattern == "" {
		return nil, r, ErrEmptyPattern
	}

	run := r.ToRun()
	run.Enabled = true
	return []rules.RunGroup{{Name: s.groups[gi].Name, Rules: []rules.RunRule{run}}}, r, nil
}

// Flush writes any pending debounced edit now
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	return s.saveLocked(ctx)
}

// Close flushes pending edits
func (s *Session) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

func groupRequest(g rules.RuleGroup) ([]rules.RunGroup, error) {
	if !g.Enabled {
		return nil, ErrGroupDisabled
	}
	run := g.RunRequest()
	if len(run.Rules) == 0 {
		return nil, ErrNothingToRun
	}
	return []rules.RunGroup{run}, nil
}

func (s *Session) schedulePersistLocked() {
	s.dirty = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.persistPending)
}

func (s *Session) persistPending() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.saveLocked(ctx); err != nil {
		s.logger.Error("Debounced save failed", zap.Error(err))
	}
}

// saveLocked writes every group, folding in any pending edit
func (s *Session) saveLocked(ctx context.Context) error {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if err := s.repo.SaveGroups(ctx, s.groups); err != nil {
		s.dirty = true
		return fmt.Errorf("failed to persist session: %w", err)
	}
	s.dirty = false
	return nil
}

func (s *Session) ensureCurrentLocked() {
	if s.groupIndex(s.current) >= 0 {
		return
	}
	s.current = ""
	if len(s.groups) > 0 {
		s.current = s.groups[0].ID
	}
}

func (s *Session) groupIndex(id string) int {
	if id == "" {
		return -1
	}
	for i, g := range s.groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) ruleIndex(groupID, ruleID string) (int, int, error) {
	gi := s.groupIndex(groupID)
	if gi < 0 {
		return -1, -1, ErrGroupNotFound
	}
	for ri, r := range s.groups[gi].Rules {
		if r.ID == ruleID {
			return gi, ri, nil
		}
	}
	return gi, -1, ErrRuleNotFound
}

func moveItem[T any](items []T, from, to int) bool {
	if to < 0 || to >= len(items) || from == to {
		return false
	}
	item := items[from]
	if from < to {
		copy(items[from:to], items[from+1:to+1])
	} else {
		copy(items[to+1:from+1], items[to:from])
	}
	items[to] = item
	return true
}

func cloneGroups(groups []rules.RuleGroup) []rules.RuleGroup {
	out := make([]rules.RuleGroup, len(groups))
	for i, g := range groups {
		out[i] = g.Clone()
	}
	return out
}
