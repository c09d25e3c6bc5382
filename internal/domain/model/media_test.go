package model

import "testing"

func TestKeyRoundTrip(t *testing.T) {
	key := Key(-1001234, 42)
	if key != "-1001234|42" {
		t.Errorf("Ключ: хотели -1001234|42, получили %s", key)
	}

	chatID, messageID, err := ParseKey(key)
	if err != nil {
		t.Fatalf("Ошибка разбора ключа: %v", err)
	}
	if chatID != -1001234 || messageID != 42 {
		t.Errorf("Разбор ключа: хотели (-1001234, 42), получили (%d, %d)", chatID, messageID)
	}
}

func TestParseKeyInvalid(t *testing.T) {
	tests := []string{"", "100", "abc|5", "100|xyz", "100|5|7"}
	for _, key := range tests {
		if _, _, err := ParseKey(key); err == nil {
			t.Errorf("Ожидалась ошибка для ключа %q", key)
		}
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(100, 5, ".jpg"); got != "chat100_msg5.jpg" {
		t.Errorf("Имя файла: хотели chat100_msg5.jpg, получили %s", got)
	}
	if got := FileName(-1001234, 42, ".bin"); got != "chat-1001234_msg42.bin" {
		t.Errorf("Имя файла: хотели chat-1001234_msg42.bin, получили %s", got)
	}
}

func TestExtensionForMIME(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{mime: "image/jpeg", want: ".jpg"},
		{mime: "image/png", want: ".png"},
		{mime: "image/gif", want: ".gif"},
		{mime: "image/webp", want: ".webp"},
		{mime: "video/mp4", want: ".mp4"},
		{mime: "audio/mpeg", want: ".mp3"},
		{mime: "audio/ogg", want: ".ogg"},
		{mime: "application/pdf", want: ".pdf"},
		{mime: "application/x-unknown", want: ".bin"},
		{mime: "", want: ".bin"},
	}

	for _, tt := range tests {
		if got := ExtensionForMIME(tt.mime); got != tt.want {
			t.Errorf("ExtensionForMIME(%q): хотели %s, получили %s", tt.mime, tt.want, got)
		}
	}
}
