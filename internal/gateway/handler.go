package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/teasru/Secure-LLM-Gateway/internal/auth"
	"github.com/teasru/Secure-LLM-Gateway/internal/models"
)

const (
	defaultMaxTokens = 200
	maxMaxTokens     = 1000
)

// Handler is the HTTP surface of the mediation pipeline.
type Handler struct {
	orchestrator *Orchestrator
}

func NewHandler(orchestrator *Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Prompt == "" {
		http.Error(w, "prompt must not be empty", http.StatusBadRequest)
		return
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = defaultMaxTokens
	}
	if body.MaxTokens < 1 || body.MaxTokens > maxMaxTokens {
		http.Error(w, "max_tokens must be between 1 and 1000", http.StatusBadRequest)
		return
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)

	result, mediationErr := h.orchestrator.Mediate(r.Context(), Request{
		Identity:  identity,
		Prompt:    body.Prompt,
		MaxTokens: body.MaxTokens,
		RequestID: requestID,
	})
	if mediationErr != nil {
		writeError(w, mediationErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.CacheHit {
		w.Header().Set("X-Cache-Status", "HIT")
	}
	json.NewEncoder(w).Encode(models.GenerateResponse{Response: result.ResponseText})
}

func writeError(w http.ResponseWriter, err *Error) {
	status := http.StatusInternalServerError
	switch err.Kind {
	case KindUnauthorized:
		status = http.StatusUnauthorized
	case KindForbidden:
		status = http.StatusForbidden
	case KindQuotaExceeded:
		status = http.StatusTooManyRequests
	case KindServiceUnavailable:
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": err.Reason})
}
