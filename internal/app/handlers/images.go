package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
)

// клиент для походов в Telegram Bot API за файлами
var imageClient = &http.Client{Timeout: 30 * time.Second}

type telegramFileResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		FilePath string `json:"file_path"`
	} `json:"result"`
}

// getTelegramFilePath запрашивает путь к файлу у Bot API по file_id
func getTelegramFilePath(ctx context.Context, endpoint, botToken, fileID string) (string, error) {
	reqURL := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", endpoint, botToken, url.QueryEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := imageClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var fileResp telegramFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&fileResp); err != nil {
		return "", err
	}
	if !fileResp.OK {
		return "", fmt.Errorf("telegram api: file not found")
	}
	return fileResp.Result.FilePath, nil
}

// ImageProxyHandler обрабатывает запрос GET /api/images/{file_id}.
// Проксирует изображение из Telegram по file_id: фронтенд не знает токена бота.
func ImageProxyHandler(log *slog.Logger, endpoint, botToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ImageProxyHandler"
		logger := log.With(slog.String("op", op))

		if botToken == "" {
			logger.Error("bot token not configured")
			http.Error(w, "bot token not configured", http.StatusInternalServerError)
			return
		}

		fileID := chi.URLParam(r, "file_id")
		if fileID == "" {
			http.Error(w, "file_id parameter is required", http.StatusBadRequest)
			return
		}

		filePath, err := getTelegramFilePath(r.Context(), endpoint, botToken, fileID)
		if err != nil {
			logger.Error("failed to resolve telegram file", slog.Any("error", err))
			http.Error(w, "Файл не найден", http.StatusNotFound)
			return
		}

		fileURL := fmt.Sprintf("%s/file/bot%s/%s", endpoint, botToken, filePath)
		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, fileURL, nil)
		if err != nil {
			logger.Error("failed to build file request", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		resp, err := imageClient.Do(req)
		if err != nil {
			logger.Error("failed to fetch telegram file", slog.Any("error", err))
			http.Error(w, "Не удалось загрузить изображение", http.StatusNotFound)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			http.Error(w, "Не удалось загрузить изображение", http.StatusNotFound)
			return
		}

		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "image/jpeg"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=86400") // сутки
		if _, err := io.Copy(w, resp.Body); err != nil {
			logger.Error("failed to stream image", slog.Any("error", err))
		}
	}
}
