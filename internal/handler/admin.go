package handler

import (
	"net/http"

	"cred/internal/admin"
	"cred/internal/compliance"
	"cred/internal/middleware"
	"cred/pkg/errors"
	"cred/pkg/logger"
)

// AdminHandler serves the manual review decision endpoints. Every
// endpoint requires an authenticated admin; role authorization happens
// in the decision workflow.
type AdminHandler struct {
	service *compliance.Service
	logger  logger.Logger
}

func NewAdminHandler(service *compliance.Service, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  log.Named("handler.admin"),
	}
}

func (h *AdminHandler) actor(w http.ResponseWriter, r *http.Request) (admin.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(h.logger, w, errors.Wrap(errors.ErrPermissionDenied, "missing admin context"))
		return admin.Actor{}, false
	}
	return actor, true
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// Approve verifies a record parked for manual review.
// POST /api/v1/admin/subjects/{id}/approve
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	subjectID, err := subjectIDFromRequest(r)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	record, err := h.service.Approve(r.Context(), actor, subjectID)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, record)
}

// Reject declines a record with a mandatory reason.
// POST /api/v1/admin/subjects/{id}/reject
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	subjectID, err := subjectIDFromRequest(r)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	var req reasonRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(h.logger, w, err)
		return
	}

	record, err := h.service.Reject(r.Context(), actor, subjectID, req.Reason)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, record)
}

// Suspend pauses a record with a mandatory reason.
// POST /api/v1/admin/subjects/{id}/suspend
func (h *AdminHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	subjectID, err := subjectIDFromRequest(r)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	var req reasonRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(h.logger, w, err)
		return
	}

	record, err := h.service.Suspend(r.Context(), actor, subjectID, req.Reason)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, record)
}

// Reinstate lifts a suspension.
// POST /api/v1/admin/subjects/{id}/reinstate
func (h *AdminHandler) Reinstate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	subjectID, err := subjectIDFromRequest(r)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	record, err := h.service.Reinstate(r.Context(), actor, subjectID)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, record)
}

type riskScoreRequest struct {
	Score int `json:"score"`
}

// UpdateRiskScore stores a manually assigned risk score.
// PUT /api/v1/admin/subjects/{id}/risk-score
func (h *AdminHandler) UpdateRiskScore(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	subjectID, err := subjectIDFromRequest(r)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	var req riskScoreRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(h.logger, w, err)
		return
	}

	record, err := h.service.UpdateRiskScore(r.Context(), actor, subjectID, req.Score)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, record)
}

type flagRequest struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason"`
}

// SetWhitelist toggles the whitelist override.
// PUT /api/v1/admin/subjects/{id}/whitelist
func (h *AdminHandler) SetWhitelist(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	subjectID, err := subjectIDFromRequest(r)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	var req flagRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(h.logger, w, err)
		return
	}

	record, err := h.service.SetWhitelist(r.Context(), actor, subjectID, req.Enabled, req.Reason)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, record)
}

// SetBlacklist toggles the blacklist override.
// PUT /api/v1/admin/subjects/{id}/blacklist
func (h *AdminHandler) SetBlacklist(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	subjectID, err := subjectIDFromRequest(r)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	var req flagRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(h.logger, w, err)
		return
	}

	record, err := h.service.SetBlacklist(r.Context(), actor, subjectID, req.Enabled, req.Reason)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, record)
}
