package tasks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"flexify/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "reminder:b1"}, nil
}

func TestScheduleReminder(t *testing.T) {
	fire := time.Date(2030, 5, 14, 6, 0, 0, 0, time.UTC)
	enq := &fakeEnqueuer{}
	s := &Scheduler{client: enq, logger: zap.NewNop()}

	p := models.ReminderPayload{BookingID: "b1", UserID: "u1", Title: "Upcoming booking", Body: "Plumbing", FireDate: fire}
	if err := s.ScheduleReminder(context.Background(), p); err != nil {
		t.Fatalf("ScheduleReminder: %v", err)
	}
	if len(enq.tasks) != 1 || enq.tasks[0].Type() != TypeSendReminder {
		t.Fatalf("tasks = %+v", enq.tasks)
	}

	var got models.ReminderPayload
	if err := json.Unmarshal(enq.tasks[0].Payload(), &got); err != nil {
		t.Fatal(err)
	}
	if got.BookingID != "b1" || !got.FireDate.Equal(fire) {
		t.Fatalf("payload = %+v", got)
	}

	var processAt time.Time
	var taskID string
	for _, o := range enq.opts[0] {
		switch o.Type() {
		case asynq.ProcessAtOpt:
			processAt = o.Value().(time.Time)
		case asynq.TaskIDOpt:
			taskID = o.Value().(string)
		}
	}
	if !processAt.Equal(fire) || taskID != "reminder:b1" {
		t.Fatalf("processAt = %v, taskID = %q", processAt, taskID)
	}
}

func TestScheduleReminderIgnoresDuplicates(t *testing.T) {
	s := &Scheduler{client: &fakeEnqueuer{err: asynq.ErrTaskIDConflict}, logger: zap.NewNop()}
	if err := s.ScheduleReminder(context.Background(), models.ReminderPayload{BookingID: "b1", FireDate: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("duplicate reminder: %v", err)
	}
}
