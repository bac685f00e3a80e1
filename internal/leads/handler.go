package leads

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/pharmesol-assistant/internal/phone"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

// Handler handles HTTP requests for leads
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// GetByPhone handles GET /api/leads/{phone} requests
func (h *Handler) GetByPhone(w http.ResponseWriter, r *http.Request) {
	normalized := phone.Normalize(chi.URLParam(r, "phone"))
	if normalized == "" {
		http.Error(w, "missing phone", http.StatusBadRequest)
		return
	}

	lead, err := h.repo.FindByPhone(r.Context(), normalized)
	if err != nil {
		h.logger.Error("failed to load lead", "error", err, "phone", phone.Last4(normalized))
		http.Error(w, "failed to load lead", http.StatusInternalServerError)
		return
	}
	if lead == nil {
		http.Error(w, ErrLeadNotFound.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lead)
}
