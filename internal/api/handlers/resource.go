// resource.go — обработчик GET /api/v1/resource.
// Разрешение синтетического адреса tgfile://{chat_id}/{message_id}
// в base64-содержимое вложения.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/tgmcp/media-cache/internal/api/errors"
	"github.com/bigkaa/tgmcp/media-cache/internal/resource"
)

// GetResource обрабатывает GET /api/v1/resource?uri=tgfile://{chat_id}/{message_id}.
// Возвращает {uri, mime_type, blob (base64), size} или 404, если адрес
// неизвестен либо файл отсутствует на диске. Повторное скачивание
// не инициируется.
func (h *APIHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	uri := strings.TrimSpace(r.URL.Query().Get("uri"))
	if uri == "" {
		apierrors.ValidationError(w, "Параметр uri обязателен")
		return
	}

	content, err := h.resolver.Resolve(uri)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			apierrors.NotFound(w, err.Error())
			return
		}

		// Ошибки парсинга адреса — на совести клиента
		if _, parseErr := resource.Parse(uri); parseErr != nil {
			apierrors.ValidationError(w, parseErr.Error())
			return
		}

		h.logger.Error("Ошибка разрешения ресурса",
			slog.String("uri", uri),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при разрешении ресурса")
		return
	}

	writeJSON(w, http.StatusOK, content)
}
