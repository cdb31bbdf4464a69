package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"goaljournal/pkg/domain"
)

func newTestQueue(t *testing.T) (*RedisLetterQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := NewRedisLetterQueue(RedisQueueConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q, mr
}

func TestEnqueueWritesJobAndStreamEntry(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "goal-1", "user-1", domain.LetterWeeklyReview)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.Status != StatusQueued {
		t.Fatalf("expected queued status, got %s", job.Status)
	}

	got, ok, err := q.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if !ok {
		t.Fatalf("expected job record")
	}
	if got.GoalID != "goal-1" || got.UserID != "user-1" || got.LetterType != domain.LetterWeeklyReview {
		t.Fatalf("unexpected job: %+v", got)
	}

	entries, err := mr.Stream(q.stream)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 stream entry, got %d", len(entries))
	}
}

func TestEnqueueRejectsBadInput(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "", "user-1", domain.LetterWeeklyReview); err == nil {
		t.Fatalf("expected error for missing goal id")
	}
	if _, err := q.Enqueue(ctx, "goal-1", "user-1", domain.LetterType("bogus")); err == nil {
		t.Fatalf("expected error for unknown letter type")
	}
}

func TestHandleMessageMarksDoneAndFailed(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "goal-1", "user-1", domain.LetterWeeklyReview)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.ensureGroup(ctx)

	msg := redis.XMessage{
		ID: "1-1",
		Values: map[string]any{
			"job_id":      job.ID,
			"goal_id":     job.GoalID,
			"user_id":     job.UserID,
			"letter_type": string(job.LetterType),
		},
	}

	q.handleMessage(ctx, msg, func(ctx context.Context, j Job) error {
		if j.ID != job.ID || j.Status != StatusProcessing {
			t.Fatalf("unexpected job passed to handler: %+v", j)
		}
		return nil
	})
	got, _, err := q.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != StatusDone || got.Attempts != 1 {
		t.Fatalf("expected done after success, got %+v", got)
	}

	q.handleMessage(ctx, msg, func(ctx context.Context, j Job) error {
		return errors.New("generation blew up")
	})
	got, _, err = q.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != StatusFailed || got.ErrorMessage != "generation blew up" {
		t.Fatalf("expected failed status, got %+v", got)
	}
}
