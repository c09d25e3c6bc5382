// Пакет model — доменные модели Media Cache.
// MediaRecord — единая структура метаданных закэшированного медиафайла,
// используется как in-memory представление и как формат записи в index.json.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultMIMEType — MIME-тип по умолчанию, если тип определить не удалось.
const DefaultMIMEType = "application/octet-stream"

// DefaultExtension — расширение по умолчанию для неизвестных MIME-типов.
const DefaultExtension = ".bin"

// MediaRecord — метаданные одного закэшированного медиафайла.
// В index.json сохраняются только поля path, mime_type, timestamp,
// size и extension; chat_id и message_id кодируются в ключе записи
// ("{chat_id}|{message_id}") и заполняются при чтении из индекса.
type MediaRecord struct {
	// ChatID — идентификатор чата Telegram (часть ключа)
	ChatID int64 `json:"chat_id,omitempty"`

	// MessageID — идентификатор сообщения внутри чата (часть ключа)
	MessageID int64 `json:"message_id,omitempty"`

	// Path — абсолютный путь файла на диске
	Path string `json:"path"`

	// MIMEType — MIME-тип медиафайла
	MIMEType string `json:"mime_type"`

	// Timestamp — время создания записи в ISO-формате.
	// Хранится строкой: используется только для сортировки и отображения,
	// а индекс, записанный другой реализацией, должен читаться без ошибок.
	Timestamp string `json:"timestamp"`

	// Size — размер файла в байтах, зафиксированный при сохранении
	Size int64 `json:"size"`

	// Extension — расширение файла (с точкой, например ".jpg")
	Extension string `json:"extension"`
}

// StorageStats — агрегированная статистика хранилища.
type StorageStats struct {
	// TotalFiles — количество валидных записей в индексе
	TotalFiles int `json:"total_files"`

	// TotalSizeBytes — суммарный размер всех файлов в байтах
	TotalSizeBytes int64 `json:"total_size_bytes"`

	// TotalSizeMB — суммарный размер в мегабайтах (2 знака после запятой)
	TotalSizeMB float64 `json:"total_size_mb"`

	// StoragePath — базовая директория хранилища
	StoragePath string `json:"storage_path"`
}

// Key возвращает ключ индекса для пары (chat_id, message_id).
// Формат "{chat_id}|{message_id}" — совместим с layout на диске.
func Key(chatID, messageID int64) string {
	return fmt.Sprintf("%d|%d", chatID, messageID)
}

// ParseKey разбирает ключ индекса обратно в chat_id и message_id.
func ParseKey(key string) (chatID, messageID int64, err error) {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("некорректный ключ индекса: %q", key)
	}

	chatID, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("некорректный chat_id в ключе %q: %w", key, err)
	}

	messageID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("некорректный message_id в ключе %q: %w", key, err)
	}

	return chatID, messageID, nil
}

// FileName возвращает детерминированное имя файла для пары
// (chat_id, message_id) и расширения: chat{chat_id}_msg{message_id}{ext}.
// Детерминированность позволяет находить и перезаписывать файл
// при повторном сохранении без сканирования директории.
func FileName(chatID, messageID int64, extension string) string {
	return fmt.Sprintf("chat%d_msg%d%s", chatID, messageID, extension)
}

// extensionByMIME — фиксированная таблица соответствия MIME-типов
// расширениям для файлов-источников без собственного суффикса.
var extensionByMIME = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"audio/mpeg":      ".mp3",
	"audio/ogg":       ".ogg",
	"application/pdf": ".pdf",
}

// ExtensionForMIME возвращает расширение файла для MIME-типа.
// Для неизвестных типов возвращает DefaultExtension.
func ExtensionForMIME(mimeType string) string {
	if ext, ok := extensionByMIME[mimeType]; ok {
		return ext
	}
	return DefaultExtension
}
