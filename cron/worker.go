package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"flexify/models"
	"flexify/services/tasks"
	"flexify/utils"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ReminderSink receives due reminders. The notification channel is one.
type ReminderSink interface {
	OnEvent(evt models.NotificationEvent) models.Notification
}

// WorkerOptions configure a ReminderWorker.
type WorkerOptions struct {
	Redis asynq.RedisClientOpt
	Sink  ReminderSink
	// CurrentUser, when set, limits delivery to reminders for that user.
	CurrentUser func() string
	Logger      *zap.Logger
	Concurrency int
}

// ReminderWorker turns due reminder tasks into local notifications.
type ReminderWorker struct {
	opts   WorkerOptions
	logger *zap.Logger
	srv    *asynq.Server

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewReminderWorker(opts WorkerOptions) *ReminderWorker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	logger := utils.OrNop(opts.Logger)
	srv := asynq.NewServer(
		opts.Redis,
		asynq.Config{
			Concurrency: opts.Concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: logger.Sugar(),
		},
	)
	return &ReminderWorker{opts: opts, logger: logger, srv: srv, stop: make(chan struct{})}
}

// Start runs the worker in the background. Failing starts are retried with
// a growing delay.
func (w *ReminderWorker) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendReminder, HandleReminderTask(w.opts.Sink, w.opts.CurrentUser, w.logger))

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.monitorRedisConnection()
	}()
	go func() {
		defer w.wg.Done()
		w.logger.Info("Starting reminder worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := w.srv.Start(mux)
			if err == nil {
				return
			}
			w.logger.Error("Reminder worker failed to start",
				zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
			if attempts == maxAttempts {
				w.logger.Error("Giving up on reminder worker")
				return
			}
			select {
			case <-w.stop:
				return
			case <-time.After(time.Duration(attempts*2) * time.Second):
			}
		}
	}()
}

// Shutdown stops the worker and waits for in-flight tasks.
func (w *ReminderWorker) Shutdown() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
	w.srv.Shutdown()
}

// HandleReminderTask delivers a reminder payload to sink as a
// booking-reminder event.
func HandleReminderTask(sink ReminderSink, currentUser func() string, logger *zap.Logger) asynq.HandlerFunc {
	logger = utils.OrNop(logger)
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.ReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("Invalid reminder payload", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		if currentUser != nil && p.UserID != "" && currentUser() != p.UserID {
			logger.Debug("Skipping reminder for another account", zap.String("bookingID", p.BookingID))
			return nil
		}

		logger.Info("Triggering reminder", zap.String("bookingID", p.BookingID), zap.String("title", p.Title))
		msg := p.Body
		if p.Title != "" {
			msg = p.Title + ": " + p.Body
		}
		sink.OnEvent(models.NotificationEvent{
			Type:      models.EventBookingReminder,
			Message:   msg,
			BookingID: p.BookingID,
			Data: map[string]any{
				"title":    p.Title,
				"body":     p.Body,
				"fireDate": p.FireDate.Format(time.RFC3339),
			},
		})
		return nil
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func (w *ReminderWorker) monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     w.opts.Redis.Addr,
		Password: w.opts.Redis.Password,
		DB:       w.opts.Redis.DB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := client.Ping(ctx).Err(); err != nil {
				w.logger.Warn("Redis connection lost", zap.Error(err))
			}
			cancel()
		}
	}
}
