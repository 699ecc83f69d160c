package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypePOSent notifies the supplier that an order was dispatched.
	TaskTypePOSent = "mail:po_sent"
	// TaskTypeShiftSweep scans for cash shifts left open too long.
	TaskTypeShiftSweep = "sweep:shifts"
)

// POSentPayload identifies the dispatched purchase order.
type POSentPayload struct {
	OrdenID int64 `json:"orden_id"`
}

// NewPOSentTask constructs the supplier-notification task.
func NewPOSentTask(ordenID int64) (*asynq.Task, error) {
	data, err := json.Marshal(POSentPayload{OrdenID: ordenID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePOSent, data), nil
}

// NewShiftSweepTask constructs the long-shift sweep task. It carries no
// payload; the threshold is read from settings at run time.
func NewShiftSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeShiftSweep, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueuePOSent enqueues the supplier notification for a dispatched order.
func (c *Client) EnqueuePOSent(ctx context.Context, ordenID int64) error {
	task, err := NewPOSentTask(ordenID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
