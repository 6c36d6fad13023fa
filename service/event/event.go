package event

import (
	"time"

	"github.com/viant/kproc/internal/clock"
	"github.com/viant/kproc/internal/idgen"
)

// Context identifies an event and its source
type Context struct {
	ID        string `json:"id"`
	EventType string `json:"eventType"`
	Service   string `json:"service"`
	Method    string `json:"method,omitempty"`
}

// NewContext creates a context with a fresh id
func NewContext(service, eventType string) *Context {
	return &Context{ID: idgen.New(), Service: service, EventType: eventType}
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Data:      data,
	}
}
