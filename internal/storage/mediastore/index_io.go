// index_io.go — загрузка и атомарная запись index.json.
// Формат: JSON-объект "{chat_id}|{message_id}" → метаданные записи.
// Запись выполняется по паттерну temp → fsync → rename, поэтому
// конкурентный читатель никогда не видит частично записанный индекс.
package mediastore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/tgmcp/media-cache/internal/domain/model"
)

// loadIndex читает индекс с диска в память.
// Отсутствующий файл — пустой индекс. Повреждённый файл логируется
// и заменяется пустым индексом: порча индекса не должна ронять
// процесс, принятая деградация — потеря индекса (не файлов).
func (s *Store) loadIndex() {
	data, err := os.ReadFile(s.indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Не удалось прочитать индекс, начинаем с пустого",
				slog.String("path", s.indexPath),
				slog.String("error", err.Error()),
			)
		}
		s.index = make(map[string]*model.MediaRecord)
		return
	}

	index := make(map[string]*model.MediaRecord)
	if err := json.Unmarshal(data, &index); err != nil {
		s.logger.Warn("Индекс повреждён, начинаем с пустого",
			slog.String("path", s.indexPath),
			slog.String("error", err.Error()),
		)
		s.index = make(map[string]*model.MediaRecord)
		return
	}

	s.index = index
	s.logger.Info("Индекс медиакэша загружен",
		slog.Int("entries", len(index)),
		slog.String("path", s.indexPath),
	)
}

// persistIndexLocked атомарно записывает индекс на диск.
// Вызывается под мьютексом. Ошибка записи возвращается вызывающей
// операции как фатальная: durability подтвердить нельзя.
func (s *Store) persistIndexLocked() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации индекса: %w", err)
	}

	tmpPath := s.indexPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла индекса: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи индекса: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync индекса: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла индекса: %w", err)
	}

	if err := os.Rename(tmpPath, s.indexPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования индекса: %w", err)
	}

	return nil
}
