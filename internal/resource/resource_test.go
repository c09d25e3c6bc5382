package resource

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/tgmcp/media-cache/internal/storage/mediastore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantChat  int64
		wantMsg   int64
		wantError bool
	}{
		{name: "валидный адрес", raw: "tgfile://100/5", wantChat: 100, wantMsg: 5},
		{name: "отрицательный chat_id", raw: "tgfile://-1001234/42", wantChat: -1001234, wantMsg: 42},
		{name: "чужая схема", raw: "http://100/5", wantError: true},
		{name: "без схемы", raw: "100/5", wantError: true},
		{name: "один сегмент", raw: "tgfile://100", wantError: true},
		{name: "три сегмента", raw: "tgfile://100/5/7", wantError: true},
		{name: "нечисловой chat_id", raw: "tgfile://abc/5", wantError: true},
		{name: "нечисловой message_id", raw: "tgfile://100/xyz", wantError: true},
		{name: "пустые сегменты", raw: "tgfile:///", wantError: true},
		{name: "пустая строка", raw: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := Parse(tt.raw)
			if tt.wantError {
				if err == nil {
					t.Fatalf("Ожидалась ошибка для %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("Неожиданная ошибка для %q: %v", tt.raw, err)
			}
			if addr.ChatID != tt.wantChat || addr.MessageID != tt.wantMsg {
				t.Errorf("Адрес: хотели (%d, %d), получили (%d, %d)",
					tt.wantChat, tt.wantMsg, addr.ChatID, addr.MessageID)
			}
		})
	}
}

func TestAddressString(t *testing.T) {
	addr := Address{ChatID: 100, MessageID: 5}
	if got := addr.String(); got != "tgfile://100/5" {
		t.Errorf("String: хотели tgfile://100/5, получили %s", got)
	}
}

func TestResolve(t *testing.T) {
	store, err := mediastore.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания Store: %v", err)
	}

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "photo.jpg")
	content := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	if err := os.WriteFile(srcPath, content, 0o640); err != nil {
		t.Fatalf("Ошибка записи исходного файла: %v", err)
	}

	if _, err := store.Save(100, 5, srcPath, "image/jpeg"); err != nil {
		t.Fatalf("Ошибка сохранения: %v", err)
	}

	resolver := NewResolver(store, testLogger())

	got, err := resolver.Resolve("tgfile://100/5")
	if err != nil {
		t.Fatalf("Ошибка разрешения адреса: %v", err)
	}

	if got.URI != "tgfile://100/5" {
		t.Errorf("URI: хотели tgfile://100/5, получили %s", got.URI)
	}
	if got.MIMEType != "image/jpeg" {
		t.Errorf("MIME-тип: хотели image/jpeg, получили %s", got.MIMEType)
	}
	if got.Size != int64(len(content)) {
		t.Errorf("Размер: хотели %d, получили %d", len(content), got.Size)
	}

	decoded, err := base64.StdEncoding.DecodeString(got.Blob)
	if err != nil {
		t.Fatalf("Blob не является валидным base64: %v", err)
	}
	if string(decoded) != string(content) {
		t.Error("Содержимое blob не совпадает с исходным файлом")
	}
}

func TestResolveUnknownAddress(t *testing.T) {
	store, err := mediastore.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания Store: %v", err)
	}

	resolver := NewResolver(store, testLogger())

	_, err = resolver.Resolve("tgfile://100/5")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Хотели ErrNotFound, получили %v", err)
	}
	// Сообщение ошибки должно называть адрес
	if !strings.Contains(err.Error(), "tgfile://100/5") {
		t.Errorf("Ошибка не содержит адрес: %v", err)
	}
}

func TestResolveMissingFile(t *testing.T) {
	store, err := mediastore.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания Store: %v", err)
	}

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "gone.png")
	if err := os.WriteFile(srcPath, []byte("png"), 0o640); err != nil {
		t.Fatalf("Ошибка записи исходного файла: %v", err)
	}

	path, err := store.Save(7, 7, srcPath, "image/png")
	if err != nil {
		t.Fatalf("Ошибка сохранения: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Ошибка удаления файла: %v", err)
	}

	resolver := NewResolver(store, testLogger())

	_, err = resolver.Resolve("tgfile://7/7")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Хотели ErrNotFound для отсутствующего файла, получили %v", err)
	}
}

func TestResolveInvalidAddress(t *testing.T) {
	store, err := mediastore.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания Store: %v", err)
	}

	resolver := NewResolver(store, testLogger())

	if _, err := resolver.Resolve("garbage"); err == nil {
		t.Error("Ожидалась ошибка для некорректного адреса")
	}
}
