// Пакет mediastore — персистентный кэш скачанных медиафайлов Telegram.
//
// Хранилище владеет базовой директорией с файлами вида
// chat{chat_id}_msg{message_id}{ext} и индексом index.json, отображающим
// ключи "{chat_id}|{message_id}" в метаданные. Индекс — единственный
// источник истины: файл на диске без записи в индексе невидим для всех
// операций чтения. Записи, чей файл удалён извне, вычищаются при
// очередном листинге (stale reconciliation).
//
// Все операции записи в индекс выполняются атомарно:
// temp → fsync → rename.
package mediastore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/tgmcp/media-cache/internal/domain/model"
)

// IndexFilename — имя файла индекса внутри базовой директории.
// Часть совместимого layout на диске, менять нельзя.
const IndexFilename = "index.json"

// ErrSourceNotFound — исходный файл для сохранения не существует.
var ErrSourceNotFound = errors.New("исходный файл не найден")

// Prometheus-метрики хранилища.
var (
	mediaFilesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mc_media_files_total",
		Help: "Текущее количество записей в индексе медиакэша",
	})
	mediaBytesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mc_media_bytes_total",
		Help: "Суммарный размер закэшированных медиафайлов в байтах",
	})
	mediaSavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mc_media_saves_total",
		Help: "Общее количество успешных сохранений медиафайлов",
	})
	mediaDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mc_media_deletes_total",
		Help: "Общее количество удалений записей из медиакэша",
	})
	mediaStalePrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mc_media_stale_pruned_total",
		Help: "Общее количество stale-записей, вычищенных из индекса",
	})
)

// Store — персистентный кэш медиафайлов с индексом на диске.
// Мьютекс защищает индекс при конкурентных запросах внутри процесса;
// межпроцессная блокировка не предусмотрена (один Store на директорию).
type Store struct {
	baseDir   string
	indexPath string
	logger    *slog.Logger

	mu    sync.Mutex
	index map[string]*model.MediaRecord // "{chat_id}|{message_id}" → запись
}

// DefaultBaseDir возвращает базовую директорию по умолчанию:
// ~/.telegram-mcp/media.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("не удалось определить домашнюю директорию: %w", err)
	}
	return filepath.Join(home, ".telegram-mcp", "media"), nil
}

// New создаёт Store над указанной базовой директорией.
// Директория создаётся при необходимости; индекс загружается с диска.
// Отсутствующий индекс — пустое хранилище; повреждённый индекс
// логируется и заменяется пустым, инициализация не падает.
func New(baseDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию медиакэша %s: %w", baseDir, err)
	}

	s := &Store{
		baseDir:   baseDir,
		indexPath: filepath.Join(baseDir, IndexFilename),
		logger:    logger.With(slog.String("component", "mediastore")),
		index:     make(map[string]*model.MediaRecord),
	}

	s.loadIndex()
	s.updateGaugesLocked()

	return s, nil
}

// BaseDir возвращает путь к базовой директории хранилища.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Save копирует файл sourcePath в хранилище под ключом (chatID, messageID)
// и обновляет индекс. mimeType опционален: пустая строка означает
// автоопределение по расширению источника с откатом на octet-stream.
// Возвращает путь сохранённого файла.
//
// Повторное сохранение под тем же ключом перезаписывает запись и файл.
// Если новое расширение отличается от прежнего, осиротевший старый файл
// удаляется (best-effort).
func (s *Store) Save(chatID, messageID int64, sourcePath, mimeType string) (string, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
		}
		return "", fmt.Errorf("ошибка доступа к исходному файлу %s: %w", sourcePath, err)
	}

	mimeType = resolveMIMEType(sourcePath, mimeType)

	// Расширение: суффикс источника, иначе по MIME-типу
	extension := filepath.Ext(sourcePath)
	if extension == "" {
		extension = model.ExtensionForMIME(mimeType)
	}

	destPath := filepath.Join(s.baseDir, model.FileName(chatID, messageID, extension))

	// Копируем содержимое в уникальный временный файл вне мьютекса;
	// размер берём из копии, а не из источника — источник может
	// измениться во время операции
	tmpPath, size, err := s.stageCopy(sourcePath)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.Key(chatID, messageID)

	// Перезапись с другим расширением оставила бы старый файл сиротой
	if old, ok := s.index[key]; ok && old.Path != destPath {
		if rmErr := os.Remove(old.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("Не удалось удалить осиротевший файл",
				slog.String("path", old.Path),
				slog.String("error", rmErr.Error()),
			)
		}
	}

	// Установка файла на целевой путь под мьютексом: конкурирующие
	// сохранения одного ключа сериализуются, итог — целиком чей-то
	// один файл (last-write-wins), никогда не смесь
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	s.index[key] = &model.MediaRecord{
		Path:      destPath,
		MIMEType:  mimeType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Size:      size,
		Extension: extension,
	}

	if err := s.persistIndexLocked(); err != nil {
		return "", err
	}

	mediaSavesTotal.Inc()
	s.updateGaugesLocked()

	s.logger.Info("Медиафайл сохранён",
		slog.Int64("chat_id", chatID),
		slog.Int64("message_id", messageID),
		slog.String("path", destPath),
		slog.String("mime_type", mimeType),
		slog.Int64("size", size),
	)

	return destPath, nil
}

// Get возвращает запись индекса по ключу (chatID, messageID).
// Чистый lookup по индексу, файловая система не затрагивается:
// вызывающий код сам проверяет существование файла по Path.
func (s *Store) Get(chatID, messageID int64) (*model.MediaRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.index[model.Key(chatID, messageID)]
	if !ok {
		return nil, false
	}

	copied := *rec
	copied.ChatID = chatID
	copied.MessageID = messageID
	return &copied, true
}

// ResolvePath возвращает путь файла по ключу, только если файл
// существует на диске. Используется границей выдачи ресурсов,
// чтобы не отдавать висячие пути.
func (s *Store) ResolvePath(chatID, messageID int64) (string, bool) {
	rec, ok := s.Get(chatID, messageID)
	if !ok {
		return "", false
	}
	if _, err := os.Stat(rec.Path); err != nil {
		return "", false
	}
	return rec.Path, true
}

// List возвращает все валидные записи, новые первыми, предварительно
// вычистив из индекса stale-записи (файл удалён извне). Индекс
// переписывается на диск один раз за вызов, не на каждую запись.
func (s *Store) List() ([]*model.MediaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	valid, _, err := s.reconcileLocked()
	if err != nil {
		return nil, err
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Timestamp > valid[j].Timestamp
	})

	return valid, nil
}

// Reconcile выполняет сверку индекса с файловой системой:
// stale-записи удаляются, индекс персистируется при изменениях.
// Возвращает количество вычищенных записей.
func (s *Store) Reconcile() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, pruned, err := s.reconcileLocked()
	return pruned, err
}

// Delete удаляет запись и её файл. Возвращает false, если ключ
// неизвестен. Ошибка удаления файла не прерывает операцию — индекс
// авторитетен, и запись убирается в любом случае.
func (s *Store) Delete(chatID, messageID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.Key(chatID, messageID)
	rec, ok := s.index[key]
	if !ok {
		return false, nil
	}

	s.removeFileLogged(rec.Path)
	delete(s.index, key)

	if err := s.persistIndexLocked(); err != nil {
		return false, err
	}

	mediaDeletesTotal.Inc()
	s.updateGaugesLocked()

	s.logger.Info("Медиафайл удалён",
		slog.Int64("chat_id", chatID),
		slog.Int64("message_id", messageID),
		slog.String("path", rec.Path),
	)

	return true, nil
}

// DeleteChat удаляет все записи указанного чата.
// Возвращает количество удалённых записей индекса.
// Ошибки удаления отдельных файлов логируются и не прерывают batch.
func (s *Store) DeleteChat(chatID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, rec := range s.index {
		keyChatID, _, err := model.ParseKey(key)
		if err != nil || keyChatID != chatID {
			continue
		}

		s.removeFileLogged(rec.Path)
		delete(s.index, key)
		count++
	}

	if count == 0 {
		return 0, nil
	}

	if err := s.persistIndexLocked(); err != nil {
		return 0, err
	}

	mediaDeletesTotal.Add(float64(count))
	s.updateGaugesLocked()

	s.logger.Info("Медиафайлы чата удалены",
		slog.Int64("chat_id", chatID),
		slog.Int("count", count),
	)

	return count, nil
}

// ClearAll удаляет все файлы, упомянутые индексом, и очищает индекс.
// Возвращает количество реально удалённых файлов: записи с уже
// отсутствующим файлом очищаются, но в счётчик не попадают.
func (s *Store) ClearAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, rec := range s.index {
		if _, err := os.Stat(rec.Path); err != nil {
			continue
		}
		if err := os.Remove(rec.Path); err != nil {
			s.logger.Warn("Не удалось удалить медиафайл",
				slog.String("path", rec.Path),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}

	cleared := len(s.index)
	s.index = make(map[string]*model.MediaRecord)

	if err := s.persistIndexLocked(); err != nil {
		return 0, err
	}

	mediaDeletesTotal.Add(float64(cleared))
	s.updateGaugesLocked()

	s.logger.Info("Медиакэш очищен",
		slog.Int("entries", cleared),
		slog.Int("files_deleted", deleted),
	)

	return deleted, nil
}

// Stats возвращает агрегированную статистику хранилища.
// Построена поверх List, поэтому попутно выполняет stale reconciliation.
func (s *Store) Stats() (*model.StorageStats, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	return s.StatsFor(records), nil
}

// StatsFor строит статистику по уже полученному списку записей.
// Не обращается к индексу и не запускает сверку: вызывающий код,
// у которого список уже есть, избегает повторного прохода.
func (s *Store) StatsFor(records []*model.MediaRecord) *model.StorageStats {
	var totalSize int64
	for _, rec := range records {
		totalSize += rec.Size
	}

	return &model.StorageStats{
		TotalFiles:     len(records),
		TotalSizeBytes: totalSize,
		TotalSizeMB:    math.Round(float64(totalSize)/(1024*1024)*100) / 100,
		StoragePath:    s.baseDir,
	}
}

// CheckReady реализует проверку готовности для readiness probe:
// базовая директория должна существовать и быть директорией.
func (s *Store) CheckReady() (status, message string) {
	info, err := os.Stat(s.baseDir)
	if err != nil {
		return "fail", fmt.Sprintf("директория хранилища недоступна: %v", err)
	}
	if !info.IsDir() {
		return "fail", fmt.Sprintf("%s не является директорией", s.baseDir)
	}
	return "ok", ""
}

// reconcileLocked обходит индекс, собирает валидные записи
// (с заполненными chat_id/message_id из ключа) и вычищает stale.
// Вызывается под мьютексом. Индекс персистируется только при изменениях.
func (s *Store) reconcileLocked() (valid []*model.MediaRecord, pruned int, err error) {
	var staleKeys []string

	for key, rec := range s.index {
		if _, statErr := os.Stat(rec.Path); statErr != nil {
			staleKeys = append(staleKeys, key)
			continue
		}

		chatID, messageID, parseErr := model.ParseKey(key)
		if parseErr != nil {
			// Чужеродный ключ в индексе: запись недостижима для
			// операций по ключу, убираем вместе со stale
			s.logger.Warn("Некорректный ключ в индексе, запись удалена",
				slog.String("key", key),
			)
			staleKeys = append(staleKeys, key)
			continue
		}

		copied := *rec
		copied.ChatID = chatID
		copied.MessageID = messageID
		valid = append(valid, &copied)
	}

	if len(staleKeys) > 0 {
		for _, key := range staleKeys {
			delete(s.index, key)
		}
		if err := s.persistIndexLocked(); err != nil {
			return nil, 0, err
		}

		mediaStalePrunedTotal.Add(float64(len(staleKeys)))
		s.updateGaugesLocked()

		s.logger.Info("Stale-записи вычищены из индекса",
			slog.Int("count", len(staleKeys)),
		)
	}

	return valid, len(staleKeys), nil
}

// stageCopy копирует содержимое src в уникальный временный файл внутри
// базовой директории: запись → fsync. Уникальное имя исключает
// взаимное затирание конкурирующими сохранениями одного ключа;
// установка на целевой путь (rename) выполняется вызывающим кодом
// под мьютексом. Возвращает путь временного файла и размер копии.
// При любой ошибке временный файл удаляется.
func (s *Store) stageCopy(src string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, fmt.Errorf("ошибка открытия исходного файла %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.CreateTemp(s.baseDir, ".staging-*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := out.Name()

	size, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("ошибка копирования данных: %w", err)
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	return tmpPath, size, nil
}

// removeFileLogged удаляет файл best-effort: ошибка логируется,
// но не возвращается. Отсутствующий файл — не ошибка.
func (s *Store) removeFileLogged(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Не удалось удалить медиафайл",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// updateGaugesLocked пересчитывает Prometheus-гейджи по текущему
// содержимому индекса. Вызывается под мьютексом.
func (s *Store) updateGaugesLocked() {
	var totalSize int64
	for _, rec := range s.index {
		totalSize += rec.Size
	}
	mediaFilesTotal.Set(float64(len(s.index)))
	mediaBytesTotal.Set(float64(totalSize))
}

// resolveMIMEType возвращает MIME-тип для сохранения:
// явно переданный → по расширению источника → octet-stream.
func resolveMIMEType(sourcePath, mimeType string) string {
	if mimeType != "" {
		return mimeType
	}

	mt := mime.TypeByExtension(filepath.Ext(sourcePath))
	if mt == "" {
		return model.DefaultMIMEType
	}

	// mime.TypeByExtension может вернуть параметры ("text/plain; charset=utf-8")
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
