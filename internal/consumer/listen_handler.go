package consumer

import (
	"context"

	"github.com/eric-nguyen545/runningTunes/internal/domain"
	"github.com/eric-nguyen545/runningTunes/internal/observability"
)

// ListenHandler persists consumed listen events into the listen store.
type ListenHandler struct {
	listens domain.ListenStore
}

// NewListenHandler constructs a handler backed by the provided store.
func NewListenHandler(listens domain.ListenStore) *ListenHandler {
	return &ListenHandler{listens: listens}
}

// Handle records the listen. Duplicate played_at values are no-ops in the
// store, so at-least-once delivery needs no extra bookkeeping here.
func (h *ListenHandler) Handle(ctx context.Context, msg Message) error {
	if err := h.listens.Record(ctx, msg.Listen); err != nil {
		return err
	}
	observability.RecordListenIngested("kafka", msg.Listen.PlayedAt)
	return nil
}
