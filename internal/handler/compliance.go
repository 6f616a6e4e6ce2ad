package handler

import (
	"net/http"
	"strconv"

	"cred/internal/compliance"
	"cred/internal/domain"
	"cred/pkg/errors"
	"cred/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// ComplianceHandler serves the enrollment, status, and enforcement
// endpoints.
type ComplianceHandler struct {
	service *compliance.Service
	logger  logger.Logger
}

func NewComplianceHandler(service *compliance.Service, log logger.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		service: service,
		logger:  log.Named("handler.compliance"),
	}
}

func subjectIDFromRequest(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, errors.Wrap(errors.ErrValidation, "invalid subject id")
	}
	return id, nil
}

// InitiateVerification handles enrollment submissions.
// POST /api/v1/verifications
func (h *ComplianceHandler) InitiateVerification(w http.ResponseWriter, r *http.Request) {
	var profile domain.Profile
	if err := decodeRequest(w, r, &profile); err != nil {
		respondError(h.logger, w, err)
		return
	}

	outcome, err := h.service.InitiateVerification(r.Context(), &profile)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	status := http.StatusCreated
	if outcome.PendingReview {
		status = http.StatusAccepted
	}
	respondJSON(h.logger, w, status, outcome)
}

// CheckStatus returns the record and the composed verification flag.
// GET /api/v1/subjects/{id}/status
func (h *ComplianceHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subjectIDFromRequest(r)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	view, err := h.service.CheckStatus(r.Context(), subjectID)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, view)
}

type evaluateTransactionRequest struct {
	Amount  decimal.Decimal           `json:"amount"`
	Context domain.TransactionContext `json:"context"`
}

// EvaluateTransaction runs the AML detectors for a prospective
// transaction.
// POST /api/v1/subjects/{id}/transactions/evaluate
func (h *ComplianceHandler) EvaluateTransaction(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subjectIDFromRequest(r)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	var req evaluateTransactionRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(h.logger, w, err)
		return
	}

	result, err := h.service.EvaluateTransaction(r.Context(), subjectID, req.Amount, req.Context)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, result)
}

type validateTransferRequest struct {
	Amount decimal.Decimal `json:"amount"`

	// EvaluateAML additionally runs the pattern detectors and folds the
	// verdict into the decision.
	EvaluateAML bool                      `json:"evaluate_aml"`
	Context     domain.TransactionContext `json:"context"`
}

type validateTransferResponse struct {
	Allowed bool                   `json:"allowed"`
	AML     *domain.AMLCheckResult `json:"aml,omitempty"`
}

// ValidateTransfer is the pre-transfer enforcement endpoint. A denial is
// a 403 carrying the denial reason.
// POST /api/v1/subjects/{id}/transfers/validate
func (h *ComplianceHandler) ValidateTransfer(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subjectIDFromRequest(r)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	var req validateTransferRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(h.logger, w, err)
		return
	}

	var amlResult *domain.AMLCheckResult
	if req.EvaluateAML {
		amlResult, err = h.service.EvaluateTransaction(r.Context(), subjectID, req.Amount, req.Context)
		if err != nil {
			respondError(h.logger, w, err)
			return
		}
	}

	if err := h.service.ValidateTransfer(r.Context(), subjectID, req.Amount, amlResult); err != nil {
		respondError(h.logger, w, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, validateTransferResponse{Allowed: true, AML: amlResult})
}

type recordTransferRequest struct {
	Amount  decimal.Decimal           `json:"amount"`
	Context domain.TransactionContext `json:"context"`
}

// RecordTransfer advances the usage counters after the caller committed
// the transfer.
// POST /api/v1/subjects/{id}/transfers
func (h *ComplianceHandler) RecordTransfer(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subjectIDFromRequest(r)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	var req recordTransferRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(h.logger, w, err)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		respondError(h.logger, w, errors.Wrap(errors.ErrValidation, "amount must be positive"))
		return
	}

	if err := h.service.RecordTransfer(r.Context(), subjectID, req.Amount, req.Context); err != nil {
		respondError(h.logger, w, err)
		return
	}
	respondJSON(h.logger, w, http.StatusCreated, map[string]string{"status": "recorded"})
}

// AuditTrail lists the most recent audit events for a subject.
// GET /api/v1/subjects/{id}/audit
func (h *ComplianceHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subjectIDFromRequest(r)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.service.AuditTrail(r.Context(), subjectID, limit)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"events": events,
		"limit":  limit,
	})
}
