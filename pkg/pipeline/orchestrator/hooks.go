package orchestrator

import (
	"fmt"

	"github.com/tabwatch/tabwatch/pkg/pipeline/changelog"
	"github.com/tabwatch/tabwatch/pkg/pipeline/monitor"
)

// Hook is a caller-supplied reaction to a logged change, typically a
// rebuild or deploy trigger. Hooks run after the change log entry is
// written, in registration order; one hook's failure never prevents the
// remaining hooks from running.
type Hook struct {
	Name        string
	Description string
	Enabled     bool

	// Handler receives the coalesced event and the log entry written for
	// it. The entry is nil when the append itself failed.
	Handler func(event monitor.Event, entry *changelog.Entry) error
}

// RegisterHook adds a hook to the end of the invocation order.
// Hook names must be unique.
func (o *Orchestrator) RegisterHook(h Hook) error {
	if h.Name == "" {
		return fmt.Errorf("hook name is required")
	}
	if h.Handler == nil {
		return fmt.Errorf("hook %q has no handler", h.Name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for _, existing := range o.hooks {
		if existing.Name == h.Name {
			return fmt.Errorf("hook %q is already registered", h.Name)
		}
	}
	o.hooks = append(o.hooks, h)
	o.log.Info("hook registered", "name", h.Name, "enabled", h.Enabled)
	return nil
}

// UnregisterHook removes a hook by name. It reports whether a hook was
// removed.
func (o *Orchestrator) UnregisterHook(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, h := range o.hooks {
		if h.Name == name {
			o.hooks = append(o.hooks[:i], o.hooks[i+1:]...)
			o.log.Info("hook unregistered", "name", name)
			return true
		}
	}
	return false
}

// HookNames returns registered hook names in invocation order.
func (o *Orchestrator) HookNames() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	names := make([]string, len(o.hooks))
	for i, h := range o.hooks {
		names[i] = h.Name
	}
	return names
}

// runHooks invokes every enabled hook in registration order. Failures and
// panics are captured per hook and recorded, never propagated.
func (o *Orchestrator) runHooks(event monitor.Event, entry *changelog.Entry) {
	o.mu.Lock()
	hooks := make([]Hook, len(o.hooks))
	copy(hooks, o.hooks)
	o.mu.Unlock()

	for _, h := range hooks {
		if !h.Enabled {
			continue
		}
		if err := callHook(h, event, entry); err != nil {
			o.recordError("hook:"+h.Name, event.Path, err)
		}
	}
}

// callHook isolates one hook invocation, converting panics to errors.
func callHook(h Hook, event monitor.Event, entry *changelog.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %q panicked: %v", h.Name, r)
		}
	}()
	return h.Handler(event, entry)
}
