package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Lixing-Zhang/storefront/internal/notify"
)

// TextSender delivers a plain chat message
type TextSender interface {
	SendText(ctx context.Context, text string) error
}

// RelayHandler is the bot relay endpoint: it forwards order messages posted by
// the storefront to the chat and always acknowledges them
type RelayHandler struct {
	sender TextSender
	logger *slog.Logger
}

func NewRelayHandler(sender TextSender, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		sender: sender,
		logger: logger,
	}
}

// SendOrder handles POST /send_order
func (h *RelayHandler) SendOrder(w http.ResponseWriter, r *http.Request) {
	var msg notify.RelayMessage

	r.Body = http.MaxBytesReader(w, r.Body, maxOrderBodySize)
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.logger.Info("failed to decode relay message", "error", err)
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
		return
	}

	if msg.Message != "" {
		if err := h.sender.SendText(r.Context(), msg.Message); err != nil {
			h.logger.Error("failed to send message to telegram", "error", err)
		} else {
			h.logger.Info("message sent to telegram", "length", len(msg.Message))
		}
	}

	w.WriteHeader(http.StatusOK)
}
