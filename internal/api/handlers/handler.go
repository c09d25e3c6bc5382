// handler.go — основной обработчик API Media Cache.
// Бизнес-endpoints реализованы в media.go и resource.go,
// health endpoints — в health.go.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/tgmcp/media-cache/internal/api/errors"
	"github.com/bigkaa/tgmcp/media-cache/internal/resource"
	"github.com/bigkaa/tgmcp/media-cache/internal/storage/mediastore"
)

// APIHandler — обработчик бизнес-endpoints Media Cache.
type APIHandler struct {
	store    *mediastore.Store
	resolver *resource.Resolver
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(store *mediastore.Store, resolver *resource.Resolver, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		store:    store,
		resolver: resolver,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// mediaKeyFromURL извлекает chat_id и message_id из параметров пути.
// При некорректных параметрах пишет 400 и возвращает ok=false.
func mediaKeyFromURL(w http.ResponseWriter, r *http.Request) (chatID, messageID int64, ok bool) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		apierrors.ValidationError(w, "Параметр chat_id должен быть целым числом")
		return 0, 0, false
	}

	messageID, err = strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		apierrors.ValidationError(w, "Параметр message_id должен быть целым числом")
		return 0, 0, false
	}

	return chatID, messageID, true
}
