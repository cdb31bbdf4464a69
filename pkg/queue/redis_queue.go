// Package queue schedules automatic letter generations (the every-4th-journal
// weekly review) on a Redis stream so they never block journal creation.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"goaljournal/internal/util"
	"goaljournal/pkg/domain"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Job describes one scheduled letter generation.
type Job struct {
	ID           string            `json:"id"`
	GoalID       string            `json:"goalId"`
	UserID       string            `json:"userId"`
	LetterType   domain.LetterType `json:"letterType"`
	Status       string            `json:"status"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Attempts     int               `json:"attempts"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// RedisLetterQueue is a Redis-streams backed queue with consumer groups.
// Failed jobs are not retried: a failed automatic letter is only logged,
// matching the fire-and-forget contract of the journal-count trigger.
type RedisLetterQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	jobTTL       time.Duration
	block        time.Duration
	claimIdle    time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	once         sync.Once
}

// RedisQueueConfig configures the queue; zero values get sane defaults.
type RedisQueueConfig struct {
	Addr      string
	Password  string
	Stream    string
	Group     string
	Consumer  string
	JobTTL    time.Duration
	Block     time.Duration
	ClaimIdle time.Duration
	MaxLen    int64
}

// NewRedisLetterQueue validates config and connects.
func NewRedisLetterQueue(cfg RedisQueueConfig) (*RedisLetterQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "goaljournal:letters"
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "letter-workers"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = util.NewID()
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = 24 * time.Hour
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}

	return &RedisLetterQueue{
		client:       redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		jobTTL:       jobTTL,
		block:        block,
		claimIdle:    claimIdle,
		maxLen:       maxLen,
		readCount:    10,
		claimCount:   10,
	}, nil
}

// Enqueue schedules one letter generation for a goal.
func (q *RedisLetterQueue) Enqueue(ctx context.Context, goalID, userID string, letterType domain.LetterType) (Job, error) {
	goalID = strings.TrimSpace(goalID)
	if goalID == "" {
		return Job{}, errors.New("goalId required")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Job{}, errors.New("userId required")
	}
	if !domain.ValidLetterType(letterType) {
		return Job{}, fmt.Errorf("unknown letter type: %s", letterType)
	}
	job := Job{
		ID:         util.NewID(),
		GoalID:     goalID,
		UserID:     userID,
		LetterType: letterType,
		Status:     StatusQueued,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return Job{}, err
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"job_id":      job.ID,
			"goal_id":     job.GoalID,
			"user_id":     job.UserID,
			"letter_type": string(job.LetterType),
		},
	}).Err(); err != nil {
		return Job{}, err
	}
	return job, nil
}

// GetJob reads a job's status record.
func (q *RedisLetterQueue) GetJob(ctx context.Context, jobID string) (Job, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Job{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return Job{}, false, err
	}
	if len(data) == 0 {
		return Job{}, false, nil
	}
	return decodeJob(jobID, data), true, nil
}

// Start launches consumer goroutines that run handler for each job.
func (q *RedisLetterQueue) Start(ctx context.Context, concurrency int, handler func(context.Context, Job) error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		go q.consumeLoop(ctx, consumer, handler)
	}
}

func (q *RedisLetterQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			slog.Warn("create consumer group failed", "stream", q.stream, "err", err)
		}
	})
}

func (q *RedisLetterQueue) consumeLoop(ctx context.Context, consumer string, handler func(context.Context, Job) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisLetterQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisLetterQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler func(context.Context, Job) error) {
	jobID, _ := msg.Values["job_id"].(string)
	goalID, _ := msg.Values["goal_id"].(string)
	userID, _ := msg.Values["user_id"].(string)
	letterType, _ := msg.Values["letter_type"].(string)
	if jobID == "" || goalID == "" || userID == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	job, err := q.markProcessing(ctx, jobID, goalID, userID, domain.LetterType(letterType))
	if err != nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if err := handler(ctx, job); err != nil {
		_ = q.markFailed(ctx, jobID, err.Error())
	} else {
		_ = q.markDone(ctx, jobID)
	}
	q.ackAndDel(ctx, msg.ID)
}

func (q *RedisLetterQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *RedisLetterQueue) markProcessing(ctx context.Context, jobID, goalID, userID string, letterType domain.LetterType) (Job, error) {
	job, _, err := q.GetJob(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.ID == "" {
		job = Job{ID: jobID}
	}
	job.GoalID = goalID
	job.UserID = userID
	job.LetterType = letterType
	job.Attempts++
	job.Status = StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (q *RedisLetterQueue) markDone(ctx context.Context, jobID string) error {
	job, _, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = StatusDone
	job.ErrorMessage = ""
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RedisLetterQueue) markFailed(ctx context.Context, jobID, errMsg string) error {
	job, _, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = StatusFailed
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RedisLetterQueue) writeStatus(ctx context.Context, job Job) error {
	key := q.jobKey(job.ID)
	payload := map[string]any{
		"id":         job.ID,
		"goalId":     job.GoalID,
		"userId":     job.UserID,
		"letterType": string(job.LetterType),
		"status":     job.Status,
		"error":      job.ErrorMessage,
		"attempts":   strconv.Itoa(job.Attempts),
		"createdAt":  job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt":  job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := q.client.HSet(ctx, key, payload).Err(); err != nil {
		return err
	}
	_ = q.client.Expire(ctx, key, q.jobTTL).Err()
	return nil
}

func (q *RedisLetterQueue) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s", q.stream, jobID)
}

func decodeJob(jobID string, data map[string]string) Job {
	job := Job{ID: jobID}
	job.GoalID = data["goalId"]
	job.UserID = data["userId"]
	job.LetterType = domain.LetterType(data["letterType"])
	job.Status = data["status"]
	job.ErrorMessage = data["error"]
	if v := data["attempts"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			job.Attempts = n
		}
	}
	if v := data["createdAt"]; v != "" {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.CreatedAt = ts
		}
	}
	if v := data["updatedAt"]; v != "" {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.UpdatedAt = ts
		}
	}
	return job
}
