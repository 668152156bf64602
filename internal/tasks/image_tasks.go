package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"meter-reading-backend/config"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeImageDelete removes a stored image that no measure row points at.
const TypeImageDelete = "image:delete"

const imageDeleteMaxRetry = 5

type ImageDeletePayload struct {
	Key string `json:"key"`
}

// ImageDeleter is the part of the image store the tasks need.
type ImageDeleter interface {
	Delete(ctx context.Context, key string) error
}

func NewImageDeleteTask(key string) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageDeletePayload{Key: key})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image delete payload: %w", err)
	}
	return asynq.NewTask(TypeImageDelete, payload, asynq.MaxRetry(imageDeleteMaxRetry)), nil
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueReaper hands orphaned images to the worker through asynq.
type QueueReaper struct {
	client taskEnqueuer
}

func NewQueueReaper(client *asynq.Client) *QueueReaper {
	return &QueueReaper{client: client}
}

func (r *QueueReaper) Reap(ctx context.Context, key string) error {
	task, err := NewImageDeleteTask(key)
	if err != nil {
		return err
	}

	info, err := r.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s for %s: %w", TypeImageDelete, key, err)
	}

	config.Logger.Info("Enqueued orphaned image delete",
		zap.String("key", key),
		zap.String("taskID", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil
}

// InlineReaper deletes immediately. Used when no redis is configured.
type InlineReaper struct {
	store ImageDeleter
}

func NewInlineReaper(store ImageDeleter) *InlineReaper {
	return &InlineReaper{store: store}
}

func (r *InlineReaper) Reap(ctx context.Context, key string) error {
	if err := r.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete orphaned image %s: %w", key, err)
	}
	config.Logger.Info("Deleted orphaned image", zap.String("key", key))
	return nil
}

type ImageDeleteHandler struct {
	store ImageDeleter
}

func NewImageDeleteHandler(store ImageDeleter) *ImageDeleteHandler {
	return &ImageDeleteHandler{store: store}
}

func (h *ImageDeleteHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageDeletePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid %s payload: %v: %w", TypeImageDelete, err, asynq.SkipRetry)
	}
	if payload.Key == "" {
		return fmt.Errorf("empty key in %s payload: %w", TypeImageDelete, asynq.SkipRetry)
	}

	if err := h.store.Delete(ctx, payload.Key); err != nil {
		config.Logger.Warn("Orphaned image delete failed, will retry",
			zap.String("key", payload.Key),
			zap.Error(err),
		)
		return err
	}

	config.Logger.Info("Deleted orphaned image", zap.String("key", payload.Key))
	return nil
}

func NewServeMux(store ImageDeleter) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeImageDelete, NewImageDeleteHandler(store))
	return mux
}
