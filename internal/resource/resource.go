// Пакет resource — синтетическая адресация закэшированных медиафайлов.
//
// Каждому сохранённому вложению соответствует адрес
// tgfile://{chat_id}/{message_id}. Resolver превращает адрес обратно
// в содержимое файла: байты кодируются base64 для передачи в
// JSON-ориентированном транспорте.
package resource

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/bigkaa/tgmcp/media-cache/internal/storage/mediastore"
)

// Scheme — схема синтетического адреса.
const Scheme = "tgfile"

// ErrNotFound — адрес неизвестен или файл отсутствует на диске.
// Повторное скачивание не выполняется: это обязанность вызывающего.
var ErrNotFound = errors.New("медиа не найдено")

// Address — разобранный синтетический адрес одного вложения.
type Address struct {
	ChatID    int64
	MessageID int64
}

// String возвращает канонический вид адреса: tgfile://{chat_id}/{message_id}.
func (a Address) String() string {
	return fmt.Sprintf("%s://%d/%d", Scheme, a.ChatID, a.MessageID)
}

// Parse разбирает строку адреса tgfile://{chat_id}/{message_id}.
// Оба идентификатора должны быть целыми числами.
func Parse(raw string) (Address, error) {
	prefix := Scheme + "://"
	if !strings.HasPrefix(raw, prefix) {
		return Address{}, fmt.Errorf("некорректный адрес %q: ожидается схема %s://", raw, Scheme)
	}

	parts := strings.Split(strings.TrimPrefix(raw, prefix), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Address{}, fmt.Errorf("некорректный адрес %q: ожидается %s://{chat_id}/{message_id}", raw, Scheme)
	}

	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Address{}, fmt.Errorf("некорректный chat_id в адресе %q: %w", raw, err)
	}

	messageID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Address{}, fmt.Errorf("некорректный message_id в адресе %q: %w", raw, err)
	}

	return Address{ChatID: chatID, MessageID: messageID}, nil
}

// Content — разрешённое содержимое вложения для JSON-ответа.
type Content struct {
	// URI — исходный синтетический адрес
	URI string `json:"uri"`
	// MIMEType — MIME-тип из записи индекса
	MIMEType string `json:"mime_type"`
	// Blob — содержимое файла в base64
	Blob string `json:"blob"`
	// Size — размер содержимого в байтах (до кодирования)
	Size int64 `json:"size"`
}

// Resolver разрешает синтетические адреса через хранилище медиакэша.
type Resolver struct {
	store  *mediastore.Store
	logger *slog.Logger
}

// NewResolver создаёт Resolver над указанным хранилищем.
func NewResolver(store *mediastore.Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.With(slog.String("component", "resource")),
	}
}

// Resolve разрешает строковый адрес в содержимое вложения.
// Неизвестный ключ и отсутствующий на диске файл неразличимы для
// вызывающего: оба дают ErrNotFound с указанием адреса.
func (r *Resolver) Resolve(raw string) (*Content, error) {
	addr, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	rec, ok := r.store.Get(addr.ChatID, addr.MessageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s — сначала скачайте его", ErrNotFound, addr)
	}

	data, err := os.ReadFile(rec.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: файл %s отсутствует на диске — сначала скачайте его", ErrNotFound, addr)
		}
		return nil, fmt.Errorf("ошибка чтения медиафайла %s: %w", rec.Path, err)
	}

	r.logger.Info("Ресурс выдан",
		slog.String("uri", addr.String()),
		slog.String("mime_type", rec.MIMEType),
		slog.Int("size", len(data)),
	)

	return &Content{
		URI:      addr.String(),
		MIMEType: rec.MIMEType,
		Blob:     base64.StdEncoding.EncodeToString(data),
		Size:     int64(len(data)),
	}, nil
}
