package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type SlotGenerator interface {
	GenerateAhead(ctx context.Context, weeksAhead int) (int, error)
}

type ReminderSender interface {
	SendDueReminders(ctx context.Context, window time.Duration) (int, error)
}

type SchedulerConfig struct {
	GenerationInterval time.Duration
	WeeksAhead         int
	ReminderInterval   time.Duration
	ReminderWindow     time.Duration
}

// Scheduler управляет фоновыми задачами: генерацией слотов и напоминаниями
type Scheduler struct {
	generator SlotGenerator
	reminders ReminderSender
	cfg       SchedulerConfig
	logger    *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewScheduler создаёт новый планировщик. reminders может быть nil.
func NewScheduler(generator SlotGenerator, reminders ReminderSender, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		generator: generator,
		reminders: reminders,
		cfg:       cfg,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("generation_interval", s.cfg.GenerationInterval),
		zap.Duration("reminder_interval", s.cfg.ReminderInterval))

	s.wg.Add(1)
	go s.runTask(ctx, "slot_generation", s.cfg.GenerationInterval, s.generateSlots)

	if s.reminders != nil {
		s.wg.Add(1)
		go s.runTask(ctx, "reminders", s.cfg.ReminderInterval, s.sendReminders)
	}
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

// runTask выполняет job сразу при старте, затем по тикеру
func (s *Scheduler) runTask(ctx context.Context, name string, interval time.Duration, job func(ctx context.Context)) {
	defer s.wg.Done()

	job(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			job(ctx)
		case <-s.stopChan:
			s.logger.Info("Background task stopped", zap.String("task", name))
			return
		case <-ctx.Done():
			s.logger.Info("Background task cancelled", zap.String("task", name))
			return
		}
	}
}

// generateSlots генерирует слоты на текущую и следующие недели
func (s *Scheduler) generateSlots(ctx context.Context) {
	created, err := s.generator.GenerateAhead(ctx, s.cfg.WeeksAhead)
	if err != nil {
		s.logger.Error("Failed to generate slots", zap.Error(err))
		return
	}
	s.logger.Info("Automatic slot generation completed", zap.Int("created", created))
}

func (s *Scheduler) sendReminders(ctx context.Context) {
	if _, err := s.reminders.SendDueReminders(ctx, s.cfg.ReminderWindow); err != nil {
		s.logger.Error("Failed to send reminders", zap.Error(err))
	}
}
