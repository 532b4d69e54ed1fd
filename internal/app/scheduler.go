package app

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/timetable/internal/timetable"
	"go.uber.org/zap"
)

// Auditor проверяет сохранённое расписание на нарушения
type Auditor interface {
	Audit(ctx context.Context) ([]timetable.Violation, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	auditor  Auditor
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(auditor Auditor, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		auditor:  auditor,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start запускает фоновые задачи; interval <= 0 отключает аудит
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Background audit disabled")
		return
	}

	s.logger.Info("Starting background scheduler", zap.Duration("audit_interval", s.interval))

	s.wg.Add(1)
	go s.runAuditTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) runAuditTask(ctx context.Context) {
	defer s.wg.Done()

	// Первый запуск сразу при старте
	s.audit(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.audit(ctx)
		case <-s.stopChan:
			s.logger.Info("Audit task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Audit task cancelled")
			return
		}
	}
}

func (s *Scheduler) audit(ctx context.Context) {
	violations, err := s.auditor.Audit(ctx)
	if err != nil {
		s.logger.Error("Failed to audit timetable", zap.Error(err))
		return
	}

	for _, v := range violations {
		s.logger.Warn("Timetable violation",
			zap.Int64("first_id", v.First.ID),
			zap.Int64("second_id", v.Second.ID),
			zap.Int("weekday", v.First.Weekday),
			zap.Strings("shared", sharedLabels(v.Shared)))
	}

	s.logger.Info("Timetable audit completed", zap.Int("violations", len(violations)))
}

func sharedLabels(keys []timetable.ResourceKey) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}
