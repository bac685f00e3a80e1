package pharmacy

import (
	"encoding/json"
	"net/http"

	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

// Handler serves the directory listing.
type Handler struct {
	directory Directory
	logger    *logging.Logger
}

// NewHandler creates a directory handler.
func NewHandler(directory Directory, logger *logging.Logger) *Handler {
	if directory == nil {
		panic("pharmacy: directory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{directory: directory, logger: logger}
}

// ListResponse is the response for listing pharmacies.
type ListResponse struct {
	Pharmacies []Pharmacy `json:"pharmacies"`
	Count      int        `json:"count"`
}

// List handles GET /api/pharmacies. An optional ?tier= filter narrows the
// result to one volume tier.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var (
		tier      Tier
		filtering bool
	)
	if raw := r.URL.Query().Get("tier"); raw != "" {
		parsed, ok := ParseTier(raw)
		if !ok {
			http.Error(w, "invalid tier", http.StatusBadRequest)
			return
		}
		tier, filtering = parsed, true
	}

	all, err := h.directory.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list pharmacies", "error", err)
		http.Error(w, "pharmacy directory unavailable", http.StatusBadGateway)
		return
	}

	out := make([]Pharmacy, 0, len(all))
	for _, p := range all {
		if filtering && TierFor(p.RxVolume) != tier {
			continue
		}
		out = append(out, p)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ListResponse{Pharmacies: out, Count: len(out)}); err != nil {
		h.logger.Error("failed to encode pharmacies", "error", err)
	}
}
