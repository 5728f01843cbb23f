package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"wisefido-discharge-board/internal/discharge"
	"wisefido-discharge-board/internal/models"
	"wisefido-discharge-board/internal/service"

	"go.uber.org/zap"
)

// RequestService write side served by RequestHandler (service.RequestService)
type RequestService interface {
	Create(ctx context.Context, in service.CreateRequestInput) (*models.DischargeRequest, error)
	Complete(ctx context.Context, requestID, justification string) (*models.DischargeRequest, discharge.WaitTimeResult, error)
	Cancel(ctx context.Context, requestID string) (*models.DischargeRequest, error)
	SetExpectedDischarge(ctx context.Context, patientID string, expected *time.Time) error
	ListPending(ctx context.Context) ([]discharge.PendingDischarge, error)
}

type RequestHandler struct {
	requests RequestService
	logger   *zap.Logger
}

func NewRequestHandler(requests RequestService, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{requests: requests, logger: logger}
}

// PendingView pending request with its wait
type PendingView struct {
	models.DischargeRequest
	Wait                  discharge.WaitTimeResult `json:"wait"`
	RequiresJustification bool                     `json:"requires_justification"`
}

// CompletionView completed (or rejected) request with the wait the rule was checked against
type CompletionView struct {
	Request *models.DischargeRequest `json:"request,omitempty"`
	Wait    discharge.WaitTimeResult `json:"wait"`
}

func (h *RequestHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.requests.ListPending(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out := make([]PendingView, 0, len(pending))
	for _, p := range pending {
		out = append(out, PendingView{
			DischargeRequest:      p.Request,
			Wait:                  p.Wait,
			RequiresJustification: discharge.RequiresJustification(p.Wait),
		})
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateRequestInput
	if err := readBodyJSON(r, maxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return
	}
	req, err := h.requests.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(req))
}

func (h *RequestHandler) Complete(w http.ResponseWriter, r *http.Request, requestID string) {
	var body struct {
		Justification string `json:"justification"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return
	}

	req, wait, err := h.requests.Complete(r.Context(), requestID, body.Justification)
	if err != nil {
		if errors.Is(err, discharge.ErrJustificationRequired) {
			writeJSON(w, http.StatusUnprocessableEntity, FailWith(err.Error(), CompletionView{Request: req, Wait: wait}))
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(CompletionView{Request: req, Wait: wait}))
}

func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request, requestID string) {
	req, err := h.requests.Cancel(r.Context(), requestID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(req))
}

// SetExpectedDischarge body {"expected_discharge_at": RFC3339 | null}
func (h *RequestHandler) SetExpectedDischarge(w http.ResponseWriter, r *http.Request, patientID string) {
	var body struct {
		ExpectedDischargeAt *time.Time `json:"expected_discharge_at"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("expected_discharge_at must be RFC3339 or null"))
		return
	}
	if err := h.requests.SetExpectedDischarge(r.Context(), patientID, body.ExpectedDischargeAt); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"patient_id":            patientID,
		"expected_discharge_at": body.ExpectedDischargeAt,
	}))
}
