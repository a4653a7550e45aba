package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/agentstation/shelf/internal/server/response"
	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/records"
)

type overrideRequest struct {
	OnLoan *bool `json:"on_loan"`
}

// HandleListOverrides handles GET {prefix}/overrides.
func (h *Handlers) HandleListOverrides(w http.ResponseWriter, r *http.Request) {
	entries := h.client.Overrides().List(r.Context())
	response.OK(w, map[string]any{
		"overrides": entries,
		"count":     len(entries),
	})
}

// HandleGetOverride handles GET {prefix}/overrides/{key}.
func (h *Handlers) HandleGetOverride(w http.ResponseWriter, r *http.Request, rawKey string) {
	key, err := records.ParseKey(rawKey)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	onLoan, ok := h.client.Overrides().Get(r.Context(), key)
	if !ok {
		response.ErrorFromType(w, errors.NewNotFoundError("override", key.String()))
		return
	}
	response.OK(w, map[string]any{"key": key.String(), "on_loan": onLoan})
}

// HandleSetOverride handles PUT {prefix}/overrides/{key} with body {"on_loan": bool}.
func (h *Handlers) HandleSetOverride(w http.ResponseWriter, r *http.Request, rawKey string) {
	key, err := records.ParseKey(rawKey)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err.Error())
		return
	}
	if req.OnLoan == nil {
		response.BadRequest(w, "Invalid request body", "on_loan is required")
		return
	}

	if err := h.client.Overrides().Set(r.Context(), key, *req.OnLoan); err != nil {
		h.logger.Error().Err(err).Str("key", key.String()).Msg("Failed to set override")
		response.ErrorFromType(w, err)
		return
	}
	response.OK(w, map[string]any{"key": key.String(), "on_loan": *req.OnLoan})
}

// HandleClearOverride handles DELETE {prefix}/overrides/{key}.
func (h *Handlers) HandleClearOverride(w http.ResponseWriter, r *http.Request, rawKey string) {
	key, err := records.ParseKey(rawKey)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	if err := h.client.Overrides().Clear(r.Context(), key); err != nil {
		h.logger.Error().Err(err).Str("key", key.String()).Msg("Failed to clear override")
		response.ErrorFromType(w, err)
		return
	}
	response.NoContent(w)
}
