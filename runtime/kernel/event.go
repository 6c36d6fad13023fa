package kernel

import (
	"github.com/viant/kproc/service/event"
)

// Lifecycle event types.
const (
	EventFork         = "fork"
	EventExec         = "exec"
	EventExit         = "exit"
	EventReap         = "reap"
	EventKill         = "kill"
	EventThreadCreate = "thread_create"
	EventThreadExit   = "thread_exit"
	EventThreadJoin   = "thread_join"
	EventMemLimit     = "memlimit"
)

// Lifecycle describes a process or thread transition.
type Lifecycle struct {
	Type  string `json:"type" yaml:"type"`
	PID   int    `json:"pid" yaml:"pid"`
	TID   int    `json:"tid,omitempty" yaml:"tid,omitempty"`
	Peer  int    `json:"peer,omitempty" yaml:"peer,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Value int    `json:"value,omitempty" yaml:"value,omitempty"`
}

// publish never blocks; events that do not fit the queue are dropped.
func (k *Kernel) publish(ev Lifecycle) {
	if k.events == nil {
		return
	}
	_ = k.events.TryPublish(event.NewEvent(event.NewContext("kernel", ev.Type), ev))
}
