// reconcile.go — сервис фоновой сверки индекса с диском.
//
// Записи индекса, у которых файл на диске отсутствует, считаются stale
// и удаляются из индекса. Запускается как горутина с периодическим
// тикером (MC_RECONCILE_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/tgmcp/media-cache/internal/storage/mediastore"
)

// Prometheus метрики reconcile
var (
	// reconcileRunsTotal — количество запусков сверки.
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mc_reconcile_runs_total",
		Help: "Общее количество запусков сверки индекса с диском",
	})

	// reconcilePrunedTotal — количество записей, удалённых при сверке.
	reconcilePrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mc_reconcile_pruned_total",
		Help: "Общее количество stale-записей, удалённых при сверке",
	})

	// reconcileDurationSeconds — длительность выполнения сверки.
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mc_reconcile_duration_seconds",
		Help:    "Длительность выполнения сверки в секундах",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// ReconcileResult — результат одного запуска сверки.
type ReconcileResult struct {
	// PrunedCount — количество удалённых stale-записей
	PrunedCount int
	// Duration — длительность выполнения
	Duration time.Duration
	// Err — ошибка сохранения индекса, если была
	Err error
}

// ReconcileService — сервис фоновой сверки индекса с диском.
type ReconcileService struct {
	store    *mediastore.Store
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(store *mediastore.Store, interval time.Duration, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		store:    store,
		interval: interval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину сверки с периодическим тикером.
// Вызывается один раз при старте приложения.
func (rs *ReconcileService) Start(ctx context.Context) {
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel

	go rs.run(rsCtx)

	rs.logger.Info("Сверка индекса запущена",
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает фоновый процесс сверки.
func (rs *ReconcileService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
	}
	rs.logger.Info("Сверка индекса остановлена")
}

// run — основной цикл фоновой горутины.
func (rs *ReconcileService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	rs.RunOnce()

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (rs *ReconcileService) RunOnce() *ReconcileResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	start := time.Now()
	result := &ReconcileResult{}

	rs.logger.Debug("Сверка начата")

	pruned, err := rs.store.Reconcile()
	result.PrunedCount = pruned
	result.Err = err
	result.Duration = time.Since(start)

	reconcileRunsTotal.Inc()
	reconcilePrunedTotal.Add(float64(pruned))
	reconcileDurationSeconds.Observe(result.Duration.Seconds())

	if err != nil {
		rs.logger.Error("Сверка завершилась с ошибкой",
			slog.Int("pruned", result.PrunedCount),
			slog.String("error", err.Error()),
		)
		return result
	}

	rs.logger.Info("Сверка завершена",
		slog.Int("pruned", result.PrunedCount),
		slog.Duration("duration", result.Duration),
	)

	return result
}
