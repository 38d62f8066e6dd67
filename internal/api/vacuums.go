package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mirobo/dreame-bridge/internal/bridge"
	"github.com/mirobo/dreame-bridge/internal/vacuum"
)

// vacuumSummary is one entry in the GET /vacuums listing.
// Pointer fields are null until the vacuum has been polled successfully.
type vacuumSummary struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	State    *string    `json:"state"`
	Battery  *int       `json:"battery"`
	FanSpeed *string    `json:"fan_speed"`
	PolledAt *time.Time `json:"polled_at"`
}

// vacuumDetail is the GET /vacuums/{id} response.
type vacuumDetail struct {
	vacuumSummary
	FanSpeedList []string           `json:"fan_speed_list"`
	Attributes   *vacuum.Attributes `json:"attributes"`
}

// commandRequest is the optional body for POST /vacuums/{id}/commands/{command}.
type commandRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// commandResponse is the 202 response for an accepted command.
// The outcome arrives asynchronously on the ack topic.
type commandResponse struct {
	CommandID string `json:"command_id"`
	AckTopic  string `json:"ack_topic"`
}

// apiCommands is the set of commands accepted over the API.
var apiCommands = map[string]struct{}{
	bridge.CommandStart:          {},
	bridge.CommandStop:           {},
	bridge.CommandPause:          {},
	bridge.CommandLocate:         {},
	bridge.CommandReturnToDock:   {},
	bridge.CommandSetFanSpeed:    {},
	bridge.CommandResetMainBrush: {},
	bridge.CommandResetSideBrush: {},
	bridge.CommandResetFilter:    {},
}

// summarise builds the list representation of one entity.
func summarise(e *vacuum.Entity) vacuumSummary {
	summary := vacuumSummary{
		ID:   e.ID(),
		Name: e.Name(),
	}

	if state, ok := e.State(); ok {
		str := string(state)
		summary.State = &str
	}
	if battery, ok := e.BatteryLevel(); ok {
		summary.Battery = &battery
	}
	if fanSpeed, ok := e.FanSpeed(); ok {
		summary.FanSpeed = &fanSpeed
	}
	if snap, ok := e.Snapshot(); ok {
		summary.PolledAt = &snap.PolledAt
	}

	return summary
}

// handleListVacuums returns summaries for every registered vacuum.
func (s *Server) handleListVacuums(w http.ResponseWriter, _ *http.Request) {
	entities := s.registry.List()
	summaries := make([]vacuumSummary, 0, len(entities))
	for _, e := range entities {
		summaries = append(summaries, summarise(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"vacuums": summaries,
		"count":   len(summaries),
	})
}

// handleGetVacuum returns the full state of one vacuum.
func (s *Server) handleGetVacuum(w http.ResponseWriter, r *http.Request) {
	entity, ok := s.registry.Get(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "vacuum not found")
		return
	}

	detail := vacuumDetail{
		vacuumSummary: summarise(entity),
		FanSpeedList:  entity.FanSpeedList(),
	}
	if attrs, ok := entity.Attributes(); ok {
		detail.Attributes = &attrs
	}

	writeJSON(w, http.StatusOK, detail)
}

// handleCommand publishes a command to the bridge's MQTT command topic.
// The command takes the same path as any other core command, so the
// device call, ack, and state refresh are handled by the bridge.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	command := chi.URLParam(r, "command")

	if _, ok := s.registry.Get(id); !ok {
		writeNotFound(w, "vacuum not found")
		return
	}
	if _, ok := apiCommands[command]; !ok {
		writeBadRequest(w, "unknown command: "+command)
		return
	}
	if s.mqtt == nil || !s.mqtt.IsConnected() {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "MQTT not connected")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cmd := bridge.CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		DeviceID:   id,
		Command:    command,
		Parameters: req.Parameters,
		Source:     "api",
	}

	payload, err := json.Marshal(&cmd)
	if err != nil {
		writeInternalError(w, "failed to marshal command")
		return
	}

	if err := s.mqtt.Publish(s.topics.Command(id), payload, 1, false); err != nil {
		s.logger.Error("failed to publish command", "device_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "failed to publish command")
		return
	}

	writeJSON(w, http.StatusAccepted, commandResponse{
		CommandID: cmd.ID,
		AckTopic:  s.topics.Ack(id),
	})
}

// defaultHistoryLimit is the number of entries returned when no limit is given.
const defaultHistoryLimit = 50

// handleGetHistory returns recent state history for one vacuum, newest first.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := s.registry.Get(id); !ok {
		writeNotFound(w, "vacuum not found")
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "state history not enabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.history.GetHistory(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("failed to query state history", "device_id", id, "error", err)
		writeInternalError(w, "failed to query state history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"entries":   entries,
		"count":     len(entries),
	})
}
