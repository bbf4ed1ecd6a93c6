package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/huangang/thesisdesk/internal/config"
	"github.com/huangang/thesisdesk/pkg/logger"
)

const (
	TaskTypeAdviseeNotify = "advisee:notify"
)

// Advisee notification events
const (
	EventAdviseeRequested     = "advisee.requested"
	EventAdviseeUpdated       = "advisee.updated"
	EventAdviseeStatusChanged = "advisee.status_changed"
	EventAdviseeDeleted       = "advisee.deleted"
)

// NotificationTask describes an advisee change that the people involved should hear about.
type NotificationTask struct {
	Event      string   `json:"event"`
	AdviseeID  string   `json:"advisee_id"`
	AdviserID  string   `json:"adviser_id"`
	StudentID  string   `json:"student_id"`
	Status     string   `json:"status"`
	PrevStatus string   `json:"prev_status,omitempty"`
	MemberIDs  []string `json:"member_ids,omitempty"`
}

// TaskProcessor handles one notification task.
type TaskProcessor func(context.Context, *NotificationTask) error

// TaskQueue defines the interface for notification task processing
type TaskQueue interface {
	Enqueue(task *NotificationTask) error
	// IsAsync returns true if tasks are handed to an external worker
	IsAsync() bool
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Warn().Err(err).Msg("[TaskQueue] Redis unavailable, falling back to sync mode")
				globalTaskQueue = NewSyncQueue()
			} else {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
			}
		} else {
			logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
			globalTaskQueue = NewSyncQueue()
		}
	})
	return globalTaskQueue
}

func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// NewNotifyTask wraps task as an asynq task.
func NewNotifyTask(task *NotificationTask) (*asynq.Task, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAdviseeNotify, payload), nil
}

func (q *AsyncQueue) Enqueue(task *NotificationTask) error {
	t, err := NewNotifyTask(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(t,
		asynq.Queue("notifications"),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Str("event", task.Event).Msg("[AsyncQueue] Task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs tasks in a background goroutine of this process (no Redis).
type SyncQueue struct {
	mu        sync.RWMutex
	processor TaskProcessor
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = processor
}

// Enqueue hands task to the processor without blocking the caller.
func (q *SyncQueue) Enqueue(task *NotificationTask) error {
	q.mu.RLock()
	processor := q.processor
	q.mu.RUnlock()

	if processor == nil {
		logger.Debug().Str("event", task.Event).Msg("[SyncQueue] no processor set, task dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := processor(context.Background(), task); err != nil {
			logger.Error().Err(err).Str("event", task.Event).Str("advisee_id", task.AdviseeID).Msg("[SyncQueue] Task processing failed")
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight tasks.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
