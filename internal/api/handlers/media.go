// media.go — HTTP handlers операций медиакэша.
// Листинг, метаданные, сохранение (ingestion), удаление, очистка, статистика.
package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	apierrors "github.com/bigkaa/tgmcp/media-cache/internal/api/errors"
	"github.com/bigkaa/tgmcp/media-cache/internal/domain/model"
	"github.com/bigkaa/tgmcp/media-cache/internal/resource"
)

// mediaItem — элемент листинга медиакэша.
type mediaItem struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	File      string `json:"file"`
	MIMEType  string `json:"mime_type"`
	Size      int64  `json:"size"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

// mediaListResponse — ответ GET /api/v1/media.
type mediaListResponse struct {
	Items []mediaItem         `json:"items"`
	Stats *model.StorageStats `json:"stats"`
}

// savedResponse — ответ POST /api/v1/media/{chat_id}/{message_id}.
type savedResponse struct {
	OK          bool   `json:"ok"`
	MIMEType    string `json:"mime_type"`
	File        string `json:"file"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
	ResourceURI string `json:"resource_uri"`
}

// clearResponse — ответ операций очистки.
type clearResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	ChatID  *int64 `json:"chat_id,omitempty"`
	Count   int    `json:"count"`
}

// ListMedia обрабатывает GET /api/v1/media.
// Возвращает все валидные записи (с попутной вычисткой stale) и статистику.
func (h *APIHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List()
	if err != nil {
		h.logger.Error("Ошибка листинга медиакэша", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка при листинге медиакэша")
		return
	}

	// Статистика из уже полученного списка: одна сверка на запрос
	stats := h.store.StatsFor(records)

	items := make([]mediaItem, 0, len(records))
	for _, rec := range records {
		items = append(items, mediaItem{
			ChatID:    rec.ChatID,
			MessageID: rec.MessageID,
			File:      filepath.Base(rec.Path),
			MIMEType:  rec.MIMEType,
			Size:      rec.Size,
			Path:      rec.Path,
			Timestamp: rec.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, mediaListResponse{Items: items, Stats: stats})
}

// GetMedia обрабатывает GET /api/v1/media/{chatID}/{messageID}.
// Чистый lookup по индексу: существование файла не проверяется.
func (h *APIHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	chatID, messageID, ok := mediaKeyFromURL(w, r)
	if !ok {
		return
	}

	rec, found := h.store.Get(chatID, messageID)
	if !found {
		apierrors.NotFound(w, fmt.Sprintf("Медиа %d/%d не найдено", chatID, messageID))
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// SaveMedia обрабатывает POST /api/v1/media/{chatID}/{messageID}.
// Тело запроса — байты вложения; Content-Type — подсказка MIME-типа;
// query-параметр filename — оригинальное имя файла (источник расширения).
//
// Байты сначала попадают во временный файл, который удаляется всегда,
// независимо от исхода сохранения.
func (h *APIHandler) SaveMedia(w http.ResponseWriter, r *http.Request) {
	chatID, messageID, ok := mediaKeyFromURL(w, r)
	if !ok {
		return
	}

	mimeType := r.Header.Get("Content-Type")
	ext := filepath.Ext(r.URL.Query().Get("filename"))

	tmp, err := os.CreateTemp("", "tgmedia-*"+ext)
	if err != nil {
		h.logger.Error("Ошибка создания временного файла", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка при приёме файла")
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r.Body); err != nil {
		tmp.Close()
		apierrors.ValidationError(w, "Ошибка чтения тела запроса: "+err.Error())
		return
	}
	if err := tmp.Close(); err != nil {
		h.logger.Error("Ошибка закрытия временного файла", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка при приёме файла")
		return
	}

	savedPath, err := h.store.Save(chatID, messageID, tmpPath, mimeType)
	if err != nil {
		h.logger.Error("Ошибка сохранения медиафайла",
			slog.Int64("chat_id", chatID),
			slog.Int64("message_id", messageID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при сохранении медиафайла")
		return
	}

	rec, _ := h.store.Get(chatID, messageID)

	writeJSON(w, http.StatusCreated, savedResponse{
		OK:          true,
		MIMEType:    rec.MIMEType,
		File:        filepath.Base(savedPath),
		Size:        rec.Size,
		Path:        savedPath,
		ResourceURI: resource.Address{ChatID: chatID, MessageID: messageID}.String(),
	})
}

// DeleteMedia обрабатывает DELETE /api/v1/media/{chatID}/{messageID}.
func (h *APIHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	chatID, messageID, ok := mediaKeyFromURL(w, r)
	if !ok {
		return
	}

	deleted, err := h.store.Delete(chatID, messageID)
	if err != nil {
		h.logger.Error("Ошибка удаления медиафайла",
			slog.Int64("chat_id", chatID),
			slog.Int64("message_id", messageID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при удалении медиафайла")
		return
	}

	if !deleted {
		apierrors.NotFound(w, fmt.Sprintf("Медиа %d/%d не найдено", chatID, messageID))
		return
	}

	writeJSON(w, http.StatusOK, clearResponse{OK: true, Message: "Медиафайл удалён", Count: 1})
}

// ClearMedia обрабатывает DELETE /api/v1/media.
// Без параметров — полная очистка кэша (count = реально удалённые файлы).
// С query-параметром chat_id — удаление всех записей одного чата
// (count = затронутые записи индекса).
func (h *APIHandler) ClearMedia(w http.ResponseWriter, r *http.Request) {
	chatIDParam := r.URL.Query().Get("chat_id")

	if chatIDParam != "" {
		chatID, err := strconv.ParseInt(chatIDParam, 10, 64)
		if err != nil {
			apierrors.ValidationError(w, "Параметр chat_id должен быть целым числом")
			return
		}

		count, err := h.store.DeleteChat(chatID)
		if err != nil {
			h.logger.Error("Ошибка очистки медиа чата",
				slog.Int64("chat_id", chatID),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при очистке медиа чата")
			return
		}

		writeJSON(w, http.StatusOK, clearResponse{
			OK:      true,
			Message: "Медиафайлы чата удалены",
			ChatID:  &chatID,
			Count:   count,
		})
		return
	}

	count, err := h.store.ClearAll()
	if err != nil {
		h.logger.Error("Ошибка очистки медиакэша", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка при очистке медиакэша")
		return
	}

	writeJSON(w, http.StatusOK, clearResponse{OK: true, Message: "Медиакэш очищен", Count: count})
}

// GetStats обрабатывает GET /api/v1/media/stats.
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats()
	if err != nil {
		h.logger.Error("Ошибка получения статистики", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка при получении статистики")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
