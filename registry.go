package simtask

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fyh275905/sofa-sub006/core"
)

// DefaultSchedulerName is the factory registered at package initialization.
const DefaultSchedulerName = "default"

// ErrUnknownFactory is returned by CreateScheduler for an unregistered name.
var ErrUnknownFactory = errors.New("simtask: unknown scheduler factory")

// Factory builds a new, not yet started scheduler.
type Factory func() *core.Scheduler

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		DefaultSchedulerName: func() *core.Scheduler {
			return core.NewScheduler(core.DefaultSchedulerConfig())
		},
	}
)

// RegisterFactory makes a scheduler implementation available under name. It
// returns false when the name is already taken.
func RegisterFactory(name string, f Factory) bool {
	if name == "" || f == nil {
		return false
	}
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, exists := factories[name]; exists {
		return false
	}
	factories[name] = f
	return true
}

// Factories returns the registered factory names in sorted order.
func Factories() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateScheduler makes the scheduler built by the named factory the global
// instance. An empty name selects DefaultSchedulerName. When the global
// instance already comes from that factory it is returned unchanged; otherwise
// the previous instance is stopped and replaced.
func CreateScheduler(name string) (*core.Scheduler, error) {
	if name == "" {
		name = DefaultSchedulerName
	}
	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFactory, name)
	}

	globalMu.Lock()
	defer globalMu.Unlock()

	if globalScheduler != nil && globalName == name {
		return globalScheduler, nil
	}
	if globalScheduler != nil {
		globalScheduler.Stop()
	}
	globalScheduler = f()
	globalName = name
	return globalScheduler, nil
}

// CurrentName returns the factory name of the global scheduler, or "" when none
// was created yet.
func CurrentName() string {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalName
}

func mustFactory(name string) Factory {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	f, ok := factories[name]
	if !ok {
		panic(fmt.Sprintf("simtask: factory %q not registered", name))
	}
	return f
}
