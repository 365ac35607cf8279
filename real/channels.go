package real

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/opd-ai/apm/limits"
	"github.com/sirupsen/logrus"
)

// ErrChannelNotFound indicates a channel id not present in the table.
var ErrChannelNotFound = errors.New("channel not found")

// ChannelTable allocates receive channel ids and announces their removal.
// It implements interfaces.ChannelRegistry and
// interfaces.ChannelRemovalNotifier.
type ChannelTable struct {
	mu        sync.RWMutex
	next      int
	channels  map[int]struct{}
	listeners []func(channel int)
}

// NewChannelTable creates an empty table.
func NewChannelTable() *ChannelTable {
	return &ChannelTable{channels: make(map[int]struct{})}
}

// CreateChannel allocates the next free id, wrapping at limits.MaxChannels.
func (t *ChannelTable) CreateChannel() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.channels) >= limits.MaxChannels {
		return 0, fmt.Errorf("%w: table holds %d channels", limits.ErrChannelOutOfRange, len(t.channels))
	}
	for {
		if _, used := t.channels[t.next]; !used {
			break
		}
		t.next = (t.next + 1) % limits.MaxChannels
	}
	id := t.next
	t.channels[id] = struct{}{}
	t.next = (t.next + 1) % limits.MaxChannels

	logrus.WithFields(logrus.Fields{
		"function": "ChannelTable.CreateChannel",
		"channel":  id,
		"count":    len(t.channels),
	}).Info("Channel created")
	return id, nil
}

// DeleteChannel removes channel and notifies listeners after the table
// lock is released.
func (t *ChannelTable) DeleteChannel(channel int) error {
	t.mu.Lock()
	if _, ok := t.channels[channel]; !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrChannelNotFound, channel)
	}
	delete(t.channels, channel)
	listeners := append([]func(int){}, t.listeners...)
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "ChannelTable.DeleteChannel",
		"channel":   channel,
		"listeners": len(listeners),
	}).Info("Channel deleted")

	for _, fn := range listeners {
		fn(channel)
	}
	return nil
}

// ChannelExists implements interfaces.ChannelRegistry.
func (t *ChannelTable) ChannelExists(channel int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.channels[channel]
	return ok
}

// OnChannelRemoved implements interfaces.ChannelRemovalNotifier.
func (t *ChannelTable) OnChannelRemoved(fn func(channel int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Channels returns the allocated ids in ascending order.
func (t *ChannelTable) Channels() []int {
	t.mu.RLock()
	ids := make([]int, 0, len(t.channels))
	for id := range t.channels {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	sort.Ints(ids)
	return ids
}
