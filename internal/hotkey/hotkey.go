package hotkey

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/engine"
	"github.com/raaihank/regex-relay/internal/logger"
	"github.com/raaihank/regex-relay/internal/rules"
	"github.com/raaihank/regex-relay/internal/store"
)

// ErrSkipped marks a command that was deliberately not run: unknown
// command, empty slot, missing or disabled group, or nothing runnable.
var ErrSkipped = errors.New("hotkey skipped")

var commandPattern = regexp.MustCompile(`run_group_slot_(\d+)`)

// Source provides the persisted groups and slot assignments
type Source interface {
	LoadGroups(ctx context.Context) ([]rules.RuleGroup, error)
	LoadSlots(ctx context.Context) (store.SlotMap, error)
}

// Runner delivers a run request to the active page
type Runner interface {
	Run(ctx context.Context, groups []rules.RunGroup) (*engine.RunResult, error)
}

// Handler turns hotkey commands into runs of the group bound to a slot
type Handler struct {
	source Source
	runner Runner
	logger *logger.Logger
}

// NewHandler creates a hotkey handler
func NewHandler(source Source, runner Runner, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{source: source, runner: runner, logger: log.WithComponent("hotkey")}
}

// CommandToSlot extracts the slot number from a command name. It returns 0
// when the command names no slot.
func CommandToSlot(command string) int {
	m := commandPattern.FindStringSubmatch(command)
	if m == nil {
		return 0
	}
	slot, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return slot
}

// Handle runs the group bound to the command's slot. Commands that resolve
// to nothing return an error wrapping ErrSkipped.
func (h *Handler) Handle(ctx context.Context, command string) (*engine.RunResult, error) {
	slot := CommandToSlot(command)
	if slot == 0 {
		return nil, h.skip(command, "unknown command")
	}

	slots, err := h.source.LoadSlots(ctx)
	if err != nil {
		return nil, err
	}
	groupID := slots[slot]
	if groupID == "" {
		return nil, h.skip(command, "slot not assigned")
	}

	groups, err := h.source.LoadGroups(ctx)
	if err != nil {
		return nil, err
	}

	var group *rules.RuleGroup
	for i := range groups {
		if groups[i].ID == groupID && groups[i].Enabled {
			group = &groups[i]
			break
		}
	}
	if group == nil {
		return nil, h.skip(command, "group missing or disabled")
	}

	run := group.RunRequest()
	if len(run.Rules) == 0 {
		return nil, h.skip(command, "no enabled rules with patterns")
	}

	h.logger.Info("Running hotkey group",
		zap.String("command", command),
		zap.Int("slot", slot),
		zap.String("group", group.Name),
		zap.Int("rules", len(run.Rules)))

	return h.runner.Run(ctx, []rules.RunGroup{run})
}

func (h *Handler) skip(command, reason string) error {
	h.logger.Debug("Hotkey skipped", zap.String("command", command), zap.String("reason", reason))
	return fmt.Errorf("%w: %s", ErrSkipped, reason)
}
