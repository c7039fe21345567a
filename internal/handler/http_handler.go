package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
	"github.com/vitalle-health/be-negotiations/internal/platform/logger"
	"github.com/vitalle-health/be-negotiations/internal/service"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	negotiations *service.NegotiationService
	alerts       *service.ContractAlertService
	log          *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(negotiations *service.NegotiationService, alerts *service.ContractAlertService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		negotiations: negotiations,
		alerts:       alerts,
		log:          log,
	}
}

// Register wires the handler routes onto mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/negotiations/create", h.CreateNegotiation)
	mux.HandleFunc("/v1/negotiations/get", h.GetNegotiation)
	mux.HandleFunc("/v1/negotiations/submit", h.SubmitForApproval)
	mux.HandleFunc("/v1/negotiations/approve", h.ProcessApproval)
	mux.HandleFunc("/v1/negotiations/rollback", h.RollbackStatus)
	mux.HandleFunc("/v1/negotiations/cancel", h.CancelNegotiation)
	mux.HandleFunc("/v1/negotiations/history", h.GetApprovalHistory)
	mux.HandleFunc("/v1/negotiations/audit", h.GetAuditTrail)
	mux.HandleFunc("/v1/alerts/open", h.OpenAlert)
	mux.HandleFunc("/v1/alerts/resolve", h.ResolveAlert)
}

// actorFromRequest builds the acting identity from the gateway-injected
// headers. The upstream gateway authenticates the caller and forwards the
// user id and capability list.
func actorFromRequest(r *http.Request) service.Actor {
	actor := service.Actor{ID: r.Header.Get("X-User-ID")}
	if caps := r.Header.Get("X-User-Capabilities"); caps != "" {
		actor.Capabilities = strings.Split(caps, ",")
	}
	return actor
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.CodeOf(err) {
	case errors.ErrCodeValidation:
		status = http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		status = http.StatusForbidden
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeInvalidState:
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// CreateNegotiation handles create negotiation HTTP requests
func (h *HTTPHandler) CreateNegotiation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req service.CreateNegotiationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	n, err := h.negotiations.CreateNegotiation(r.Context(), actorFromRequest(r), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, n)
}

// GetNegotiation handles get negotiation HTTP requests
func (h *HTTPHandler) GetNegotiation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Negotiation ID is required", http.StatusBadRequest)
		return
	}

	n, err := h.negotiations.GetNegotiation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, n)
}

// SubmitForApproval handles submit for approval HTTP requests
func (h *HTTPHandler) SubmitForApproval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	n, err := h.negotiations.SubmitForApproval(r.Context(), req.ID, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, n)
}

// ProcessApproval handles approval decision HTTP requests
func (h *HTTPHandler) ProcessApproval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID        string  `json:"id"`
		Notes     *string `json:"notes,omitempty"`
		Decisions []struct {
			ItemID   string `json:"item_id"`
			Decision string `json:"decision"`
			Value    *int64 `json:"value,omitempty"`
		} `json:"decisions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	decisions := make([]service.ItemDecision, 0, len(req.Decisions))
	for _, d := range req.Decisions {
		decisions = append(decisions, service.ItemDecision{
			ItemID:   d.ItemID,
			Decision: d.Decision,
			Value:    d.Value,
		})
	}

	result, err := h.negotiations.ProcessApproval(r.Context(), req.ID, actorFromRequest(r), decisions, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"negotiation": result.Negotiation}
	if result.Forked != nil {
		resp["forked"] = result.Forked
	}
	writeJSON(w, http.StatusOK, resp)
}

// RollbackStatus handles rollback HTTP requests
func (h *HTTPHandler) RollbackStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	n, err := h.negotiations.RollbackStatus(r.Context(), req.ID, actorFromRequest(r), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, n)
}

// CancelNegotiation handles cancel HTTP requests
func (h *HTTPHandler) CancelNegotiation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID     string  `json:"id"`
		Reason *string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	n, err := h.negotiations.Cancel(r.Context(), req.ID, actorFromRequest(r), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, n)
}

// GetApprovalHistory handles workflow history HTTP requests
func (h *HTTPHandler) GetApprovalHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Negotiation ID is required", http.StatusBadRequest)
		return
	}

	entries, err := h.negotiations.GetApprovalHistory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// GetAuditTrail handles audit trail HTTP requests
func (h *HTTPHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Negotiation ID is required", http.StatusBadRequest)
		return
	}

	entries, err := h.negotiations.GetAuditTrail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"audit": entries})
}

// OpenAlert handles open contract alert HTTP requests
func (h *HTTPHandler) OpenAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		NegotiationID string `json:"negotiation_id"`
		ContractRef   string `json:"contract_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	alert, err := h.alerts.OpenAlert(r.Context(), req.NegotiationID, req.ContractRef)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, alert)
}

// ResolveAlert handles resolve contract alert HTTP requests
func (h *HTTPHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.alerts.ResolveAlert(r.Context(), req.ID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}
