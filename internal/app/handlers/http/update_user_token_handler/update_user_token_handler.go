package update_user_token_handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/IT-Nick/assessbot/internal/domain/users/repository"
	"github.com/IT-Nick/assessbot/internal/domain/users/service"
	httpResponse "github.com/IT-Nick/assessbot/pkg/http"
)

// UpdateUserTokenRequest структура для данных запроса
type UpdateUserTokenRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Token      string `json:"token"`
}

// TokenSetter сохраняет токен бэкенда пользователя
type TokenSetter interface {
	SetAPIToken(ctx context.Context, telegramID int64, token string) error
}

// UpdateUserTokenHandler привязывает токен бэкенда к пользователю бота
type UpdateUserTokenHandler struct {
	users  TokenSetter
	logger *zap.Logger
}

// NewUpdateUserTokenHandler создает новый экземпляр обработчика
func NewUpdateUserTokenHandler(users TokenSetter, logger *zap.Logger) *UpdateUserTokenHandler {
	return &UpdateUserTokenHandler{users: users, logger: logger}
}

// ServeHTTP метод для обработки запроса
func (h *UpdateUserTokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpResponse.ErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TelegramID == 0 {
		httpResponse.ErrorResponse(w, http.StatusBadRequest, "Missing telegram_id")
		return
	}

	err := h.users.SetAPIToken(r.Context(), req.TelegramID, req.Token)
	switch {
	case errors.Is(err, service.ErrNoToken):
		httpResponse.ErrorResponse(w, http.StatusBadRequest, "Missing token")
		return
	case errors.Is(err, repository.ErrUserNotFound):
		httpResponse.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	case err != nil:
		h.logger.Error("failed to update user token", zap.Int64("telegram_id", req.TelegramID), zap.Error(err))
		httpResponse.ErrorResponse(w, http.StatusInternalServerError, "Failed to update token")
		return
	}

	httpResponse.JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
