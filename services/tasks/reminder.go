package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flexify/config"
	"flexify/models"
	"flexify/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeSendReminder = "reminder:send"

// NewReminderTask builds the reminder task for payload, due at fireAt. The
// booking id doubles as task id so a booking is reminded once.
func NewReminderTask(payload models.ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendReminder, b)
	opts := []asynq.Option{asynq.ProcessAt(fireAt)}
	if payload.BookingID != "" {
		opts = append(opts, asynq.TaskID("reminder:"+payload.BookingID))
	}

	return task, opts, nil
}

// RedisOpt returns the connection of the reminder queue.
func RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	}
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler queues booking reminders.
type Scheduler struct {
	client enqueuer
	closer func() error
	logger *zap.Logger
}

func NewScheduler(opt asynq.RedisConnOpt, logger *zap.Logger) *Scheduler {
	client := asynq.NewClient(opt)
	return &Scheduler{client: client, closer: client.Close, logger: utils.OrNop(logger)}
}

// ScheduleReminder queues p for its FireDate. A reminder already queued for
// the same booking is left as is.
func (s *Scheduler) ScheduleReminder(ctx context.Context, p models.ReminderPayload) error {
	task, opts, err := NewReminderTask(p, p.FireDate)
	if err != nil {
		return fmt.Errorf("building reminder task: %w", err)
	}
	info, err := s.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		s.logger.Debug("Reminder already scheduled", zap.String("bookingID", p.BookingID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueueing reminder: %w", err)
	}
	s.logger.Info("Reminder scheduled",
		zap.String("bookingID", p.BookingID), zap.String("taskID", info.ID), zap.Time("fireAt", p.FireDate))
	return nil
}

func (s *Scheduler) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
