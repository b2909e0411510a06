package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mkorlev/packshop/internal/adminauth"
)

// AdminCheckRequest — запрос проверки прав администратора
type AdminCheckRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

// AdminCheckResponse — подтверждение прав администратора
type AdminCheckResponse struct {
	Status  string `json:"status"`
	IsAdmin bool   `json:"is_admin"`
}

// AdminCheckHandler обрабатывает запрос POST /api/admin/check.
// Мини-приложение вызывает его, чтобы решить, показывать ли консоль админа.
func AdminCheckHandler(log *slog.Logger, adminIDs []int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminCheckHandler"
		logger := log.With(slog.String("op", op))

		var req AdminCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		if !adminauth.IsAdmin(adminIDs, req.UserID) {
			logger.Warn("admin check rejected", slog.Int64("userID", req.UserID))
			http.Error(w, "Not authorized", http.StatusForbidden)
			return
		}
		writeJSON(logger, w, http.StatusOK, AdminCheckResponse{Status: "ok", IsAdmin: true})
	}
}
