package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/tgmcp/media-cache/internal/storage/mediastore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupReconcileTestEnv создаёт хранилище с одной сохранённой записью.
func setupReconcileTestEnv(t *testing.T) (*mediastore.Store, string) {
	t.Helper()

	store, err := mediastore.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания Store: %v", err)
	}

	srcPath := filepath.Join(t.TempDir(), "src.jpg")
	if err := os.WriteFile(srcPath, []byte("data"), 0o640); err != nil {
		t.Fatalf("Ошибка записи исходного файла: %v", err)
	}

	path, err := store.Save(1, 1, srcPath, "image/jpeg")
	if err != nil {
		t.Fatalf("Ошибка сохранения: %v", err)
	}

	return store, path
}

func TestReconcileRunOnce_NoStale(t *testing.T) {
	store, _ := setupReconcileTestEnv(t)

	rs := NewReconcileService(store, time.Hour, testLogger())
	result := rs.RunOnce()

	if result == nil {
		t.Fatal("Результат nil")
	}
	if result.Err != nil {
		t.Fatalf("Неожиданная ошибка: %v", result.Err)
	}
	if result.PrunedCount != 0 {
		t.Errorf("Вычищено записей: хотели 0, получили %d", result.PrunedCount)
	}
}

func TestReconcileRunOnce_PrunesStale(t *testing.T) {
	store, path := setupReconcileTestEnv(t)

	// Файл удалён извне: запись становится stale
	if err := os.Remove(path); err != nil {
		t.Fatalf("Ошибка удаления файла: %v", err)
	}

	rs := NewReconcileService(store, time.Hour, testLogger())
	result := rs.RunOnce()

	if result.Err != nil {
		t.Fatalf("Неожиданная ошибка: %v", result.Err)
	}
	if result.PrunedCount != 1 {
		t.Errorf("Вычищено записей: хотели 1, получили %d", result.PrunedCount)
	}

	if _, ok := store.Get(1, 1); ok {
		t.Error("Stale-запись осталась в индексе после сверки")
	}
}

func TestReconcileStartStop(t *testing.T) {
	store, _ := setupReconcileTestEnv(t)

	rs := NewReconcileService(store, time.Hour, testLogger())
	rs.Start(context.Background())

	// Первый запуск выполняется сразу после старта
	time.Sleep(50 * time.Millisecond)
	rs.Stop()
}
