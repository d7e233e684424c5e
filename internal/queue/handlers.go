package queue

import (
	"context"

	"github.com/hibiken/asynq"
)

// HandlersRegistry collects task handlers for the worker binary. It exists so
// worker wiring registers by task type without touching asynq's mux directly.
type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux: asynq.NewServeMux(),
	}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

// RegisterFunc registers a plain function as the handler for taskType.
func (r *HandlersRegistry) RegisterFunc(taskType string, fn func(context.Context, *asynq.Task) error) {
	r.mux.HandleFunc(taskType, fn)
}

// Mux returns the assembled handler set for asynq's server.
func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}
