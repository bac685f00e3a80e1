package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

// Handler wires HTTP requests to the chatbot service.
type Handler struct {
	service Service
	logger  *logging.Logger
}

// NewHandler creates a chatbot handler.
func NewHandler(service Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("conversation: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Routes mounts the chatbot endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/start", h.Start)
	r.Post("/message", h.Message)
	r.Post("/schedule-callback", h.ScheduleCallback)
	r.Post("/send-email", h.SendEmail)
	r.Get("/conversation/{id}", h.GetConversation)
	r.Get("/conversation/{id}/resume", h.Resume)
}

// Start handles POST /api/chatbot/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.StartChat(r.Context(), req.PhoneNumber)
	if err != nil {
		h.writeError(w, "failed to start conversation", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// Message handles POST /api/chatbot/message.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.SendMessage(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		h.writeError(w, "failed to process message", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ScheduleCallback handles POST /api/chatbot/schedule-callback.
func (h *Handler) ScheduleCallback(w http.ResponseWriter, r *http.Request) {
	var req ScheduleCallbackRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.ScheduleCallback(r.Context(), req.ConversationID, req.PreferredTime, req.Notes)
	if err != nil {
		h.writeError(w, "failed to schedule callback", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// SendEmail handles POST /api/chatbot/send-email.
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req SendEmailRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.SendEmail(r.Context(), req.ConversationID, req.Email, req.IncludePricing)
	if err != nil {
		h.writeError(w, "failed to send email", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetConversation handles GET /api/chatbot/conversation/{id}.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	resp, err := h.service.GetConversation(r.Context(), id)
	if err != nil {
		h.writeError(w, "failed to load conversation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Resume handles GET /api/chatbot/conversation/{id}/resume.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.ResumeSummary(r.Context(), id)
	if err != nil {
		h.writeError(w, "failed to resume conversation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResumeResponse{ConversationID: id, Message: summary})
}

func (h *Handler) conversationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "conversation id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request", "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	if err := validate().Struct(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Details: validationDetails(err)})
		return false
	}
	return true
}

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	} else {
		h.logger.Warn(msg, "error", err)
	}
	body := errorBody{Error: msg}
	switch status {
	case http.StatusNotFound:
		body.Error = "conversation not found"
	case http.StatusBadRequest:
		body.Details = []string{err.Error()}
	}
	h.writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrInvalidPhone), errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMalformedArguments):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
