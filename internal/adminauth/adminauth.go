package adminauth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
)

// Авторизация админки: запрос считается админским, если Telegram ID из
// заголовка входит в настроенный список. Никаких токенов и сессий —
// так работает исходная консоль мини-приложения.
const HeaderUserID = "X-Telegram-User-ID"

type ctxKey struct{}

// IsAdmin проверяет вхождение userID в список администраторов
func IsAdmin(adminIDs []int64, userID int64) bool {
	for _, id := range adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Middleware пропускает дальше только запросы администраторов,
// укладывая их Telegram ID в контекст запроса.
func Middleware(log *slog.Logger, adminIDs []int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(HeaderUserID)
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				log.Warn("admin check failed: bad user id header", slog.String("value", raw))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !IsAdmin(adminIDs, userID) {
				log.Warn("admin check failed: not in admin list", slog.Int64("userID", userID))
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext возвращает Telegram ID администратора, положенный middleware
func FromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(ctxKey{}).(int64)
	return userID, ok
}
