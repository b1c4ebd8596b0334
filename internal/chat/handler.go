package chat

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aangilam/aangilam/internal/metrics"
	"github.com/rs/zerolog"
)

// apologyText is the user-safe fallback reply when the upstream model is
// unreachable. The proxy contract is that failures still produce a
// success-shaped 200 response, never an error the browser has to handle.
const apologyText = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

// EmotionContext is the optional webcam-emotion payload attached by the
// client. The proxy does no detection of its own; it only relays the hint
// into the conversation.
type EmotionContext struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Request is the chat proxy request body.
type Request struct {
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	EmotionContext *EmotionContext `json:"emotionContext,omitempty"`
}

// Response is the chat proxy response body. Failures are reported in-band
// with Success=false and an apology in Response.
type Response struct {
	Success           bool   `json:"success"`
	Response          string `json:"response"`
	Error             string `json:"error,omitempty"`
	EmotionDetected   string `json:"emotionDetected,omitempty"`
	EmotionalResponse bool   `json:"emotionalResponse,omitempty"`
}

// Handler proxies chat requests to the upstream model.
type Handler struct {
	client             *Client
	defaultTemperature float64
	defaultMaxTokens   int
	logger             zerolog.Logger
}

// NewHandler creates a chat proxy handler.
func NewHandler(client *Client, defaultTemperature float64, defaultMaxTokens int, logger zerolog.Logger) *Handler {
	return &Handler{
		client:             client,
		defaultTemperature: defaultTemperature,
		defaultMaxTokens:   defaultMaxTokens,
		logger:             logger.With().Str("handler", "chat").Logger(),
	}
}

// HandleChat forwards a message list to the model endpoint and relays the
// answer. Upstream failures are translated, never propagated.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeResponse(w, Response{
			Success:  false,
			Response: apologyText,
			Error:    "invalid request body",
		})
		metrics.ChatRequestsTotal.WithLabelValues("bad_request").Inc()
		return
	}

	if len(req.Messages) == 0 {
		h.writeResponse(w, Response{
			Success:  false,
			Response: apologyText,
			Error:    "messages list is empty",
		})
		metrics.ChatRequestsTotal.WithLabelValues("bad_request").Inc()
		return
	}

	temperature := h.defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := h.defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	messages := req.Messages
	emotional := false
	emotion := ""
	if req.EmotionContext != nil && req.EmotionContext.Emotion != "" {
		emotion = req.EmotionContext.Emotion
		emotional = true
		messages = append([]Message{{
			Role: "system",
			Content: fmt.Sprintf(
				"The learner currently appears %s (confidence %.0f%%). Adjust your tone accordingly while staying encouraging.",
				emotion, req.EmotionContext.Confidence*100),
		}}, messages...)
	}

	reply, err := h.client.Complete(r.Context(), messages, temperature, maxTokens)
	if err != nil {
		h.logger.Error().Err(err).Msg("Upstream completion failed")
		metrics.ChatUpstreamErrors.Inc()
		metrics.ChatRequestsTotal.WithLabelValues("upstream_error").Inc()
		h.writeResponse(w, Response{
			Success:           false,
			Response:          apologyText,
			Error:             err.Error(),
			EmotionDetected:   emotion,
			EmotionalResponse: emotional,
		})
		return
	}

	metrics.ChatRequestsTotal.WithLabelValues("ok").Inc()
	h.writeResponse(w, Response{
		Success:           true,
		Response:          reply,
		EmotionDetected:   emotion,
		EmotionalResponse: emotional,
	})
}

// writeResponse always answers 200; the success flag carries the outcome.
func (h *Handler) writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode chat response")
	}
}
