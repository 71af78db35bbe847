package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/engine"
	"github.com/raaihank/regex-relay/internal/hotkey"
	"github.com/raaihank/regex-relay/internal/rules"
	"github.com/raaihank/regex-relay/internal/session"
	"github.com/raaihank/regex-relay/internal/store"
	"github.com/raaihank/regex-relay/internal/transfer"
	"github.com/raaihank/regex-relay/internal/transport"
)

const maxImportSize = 10 << 20

// runResponse is returned by every run endpoint
type runResponse struct {
	Result  *engine.RunResult `json:"result"`
	Summary string            `json:"summary"`
}

// slotView is one hotkey slot with the group bound to it
type slotView struct {
	Slot      int    `json:"slot"`
	Command   string `json:"command"`
	GroupID   string `json:"group_id,omitempty"`
	GroupName string `json:"group_name,omitempty"`
}

type moveRequest struct {
	Delta int `json:"delta"`
}

type slotRequest struct {
	Slot int `json:"slot"`
}

type addGroupRequest struct {
	Name string `json:"name"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":              "regex-relay",
		"version":           Version,
		"uptime":            time.Since(s.started).Round(time.Second).String(),
		"storage":           s.config.Storage.Driver,
		"groups":            len(s.session.Groups()),
		"agents":            s.hub.GetStats(),
		"transport_timeout": s.dispatcher.Timeout().String(),
	})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"groups":           s.session.Groups(),
		"current_group_id": s.session.CurrentID(),
	})
}

func (s *Server) handleAddGroup(w http.ResponseWriter, r *http.Request) {
	var req addGroupRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}

	g, err := s.session.AddGroup(r.Context(), req.Name)
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var patch session.GroupPatch
	if !s.decode(w, r, &patch) {
		return
	}

	g, err := s.session.UpdateGroup(mux.Vars(r)["id"], patch)
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteGroup(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveGroup(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.session.MoveGroup(r.Context(), mux.Vars(r)["id"], req.Delta); err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	s.handleListGroups(w, r)
}

func (s *Server) handleSelectGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Select(mux.Vars(r)["id"]); err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	s.handleListGroups(w, r)
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.session.AddRule(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var patch session.RulePatch
	if !s.decode(w, r, &patch) {
		return
	}

	vars := mux.Vars(r)
	rule, err := s.session.UpdateRule(vars["id"], vars["rid"], patch)
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}

	resp := map[string]any{"rule": rule}
	if rule.Pattern != "" {
		if _, err := rules.Compile(rule.Pattern, rule.Flags); err != nil {
			resp["invalid"] = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.session.DeleteRule(r.Context(), vars["id"], vars["rid"]); err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveRule(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !s.decode(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	if err := s.session.MoveRule(r.Context(), vars["id"], vars["rid"], req.Delta); err != nil {
		s.writeSessionError(w, r, err)
		return
	}

	g, err := s.session.Group(vars["id"])
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleRunCurrent(w http.ResponseWriter, r *http.Request) {
	groups, err := s.session.RunRequest()
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	s.run(w, r, groups, nil)
}

func (s *Server) handleRunGroup(w http.ResponseWriter, r *http.Request) {
	groups, err := s.session.GroupRunRequest(mux.Vars(r)["id"])
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	s.run(w, r, groups, nil)
}

func (s *Server) handleRunRule(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groups, rule, err := s.session.RuleRunRequest(vars["id"], vars["rid"])
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	s.run(w, r, groups, func(res *engine.RunResult) string {
		return res.RuleSummary(rule.Pattern, rule.Flags)
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	command := mux.Vars(r)["command"]

	// Commands read persisted state
	if err := s.session.Flush(r.Context()); err != nil {
		s.writeSessionError(w, r, err)
		return
	}

	s.runMu.Lock()
	result, err := s.hotkeys.Handle(r.Context(), command)
	s.runMu.Unlock()

	if errors.Is(err, hotkey.ErrSkipped) {
		writeJSON(w, http.StatusOK, map[string]any{"skipped": true, "reason": err.Error()})
		return
	}
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Result: result, Summary: result.Summary()})
}

// run delivers groups to the active page and reports the result
func (s *Server) run(w http.ResponseWriter, r *http.Request, groups []rules.RunGroup, summarize func(*engine.RunResult) string) {
	s.runMu.Lock()
	result, err := s.dispatcher.Run(r.Context(), groups)
	s.runMu.Unlock()

	if err != nil {
		s.writeRunError(w, r, err)
		return
	}

	summary := result.Summary()
	if summarize != nil {
		summary = summarize(result)
	}
	writeJSON(w, http.StatusOK, runResponse{Result: result, Summary: summary})
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	slots := s.session.Slots()
	names := make(map[string]string)
	for _, g := range s.session.Groups() {
		names[g.ID] = g.Name
	}

	views := make([]slotView, 0, store.MaxSlot)
	for slot := store.MinSlot; slot <= store.MaxSlot; slot++ {
		v := slotView{Slot: slot, Command: fmt.Sprintf("run_group_slot_%d", slot)}
		if id, ok := slots[slot]; ok {
			v.GroupID = id
			v.GroupName = names[id]
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": views})
}

func (s *Server) handleAssignSlot(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if !s.decode(w, r, &req) {
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.session.AssignSlot(r.Context(), id, req.Slot); err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group_id": id, "slot": s.session.SlotOf(id)})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.hub.Agents()})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := transfer.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var buf bytes.Buffer
	if err := transfer.Export(&buf, s.session.Export(), format); err != nil {
		s.logger.Error("Export failed", zap.String("format", string(format)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	format, err := transfer.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	groups, err := transfer.Import(http.MaxBytesReader(w, r.Body, maxImportSize), format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.session.Import(r.Context(), groups); err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	s.handleListGroups(w, r)
}

// decode reads a required JSON body
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

// decodeOptional reads a JSON body that may be empty
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
	return false
}

func (s *Server) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrGroupNotFound), errors.Is(err, session.ErrRuleNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNoCurrentGroup), errors.Is(err, session.ErrGroupDisabled),
		errors.Is(err, session.ErrNothingToRun), errors.Is(err, session.ErrEmptyPattern):
		status = http.StatusConflict
	case errors.Is(err, session.ErrInvalidSlot):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Session operation failed", zap.Error(err))
	}
	writeError(w, status, err)
}

func (s *Server) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, transport.ErrNoActiveTarget):
		status = http.StatusServiceUnavailable
	case errors.Is(err, transport.ErrNoResponse):
		status = http.StatusGatewayTimeout
	case errors.Is(err, transport.ErrAttachFailed):
		status = http.StatusBadGateway
	}

	s.logger.WithRequestID(getRequestID(r.Context())).Warn("Run failed", zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error(), "summary": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
