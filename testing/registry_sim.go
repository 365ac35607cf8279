package testing

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// SimulatedChannelRegistry is an in-memory channel registry for testing.
type SimulatedChannelRegistry struct {
	channels  map[int]bool
	listeners []func(channel int)
	mu        sync.RWMutex
}

// NewSimulatedChannelRegistry creates a registry holding ids.
func NewSimulatedChannelRegistry(ids ...int) *SimulatedChannelRegistry {
	r := &SimulatedChannelRegistry{channels: make(map[int]bool)}
	for _, id := range ids {
		r.channels[id] = true
	}
	return r
}

// ChannelExists implements interfaces.ChannelRegistry.
func (r *SimulatedChannelRegistry) ChannelExists(channel int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channels[channel]
}

// OnChannelRemoved implements interfaces.ChannelRemovalNotifier.
func (r *SimulatedChannelRegistry) OnChannelRemoved(fn func(channel int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// AddChannel registers channel.
func (r *SimulatedChannelRegistry) AddChannel(channel int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[channel] = true
}

// RemoveChannel unregisters channel and notifies removal listeners.
func (r *SimulatedChannelRegistry) RemoveChannel(channel int) {
	r.mu.Lock()
	existed := r.channels[channel]
	delete(r.channels, channel)
	listeners := append([]func(int){}, r.listeners...)
	r.mu.Unlock()

	if !existed {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":  "SimulatedChannelRegistry.RemoveChannel",
		"channel":   channel,
		"listeners": len(listeners),
	}).Info("Removing channel from simulation")

	for _, fn := range listeners {
		fn(channel)
	}
}

// Channels returns the registered ids in ascending order.
func (r *SimulatedChannelRegistry) Channels() []int {
	r.mu.RLock()
	ids := make([]int, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Ints(ids)
	return ids
}
