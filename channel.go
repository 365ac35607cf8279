package apm

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// channelState is the immutable value published for one channel.
type channelState struct {
	config   PerChannelConfig
	observer VadObserver
}

// channelEntry serializes setters on one channel.
type channelEntry struct {
	mu    sync.Mutex
	state atomic.Pointer[channelState]
}

func newChannelEntry() *channelEntry {
	e := &channelEntry{}
	e.state.Store(&channelState{config: defaultChannel()})
	return e
}

// checkChannel verifies channel against the registry. A stale entry left
// behind by a removal the registry did not announce is dropped.
func (ap *AudioProcessing) checkChannel(channel int, function string) error {
	if ap.registry.ChannelExists(channel) {
		return nil
	}
	ap.dropEntry(channel)
	logrus.WithFields(logrus.Fields{
		"function": function,
		"channel":  channel,
	}).Warn("Operation on unknown channel rejected")
	return fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
}

func (ap *AudioProcessing) existingEntry(channel int) *channelEntry {
	ap.channelsMu.RLock()
	defer ap.channelsMu.RUnlock()
	return ap.channels[channel]
}

func (ap *AudioProcessing) entryFor(channel int) *channelEntry {
	if e := ap.existingEntry(channel); e != nil {
		return e
	}

	ap.channelsMu.Lock()
	defer ap.channelsMu.Unlock()
	if e, ok := ap.channels[channel]; ok {
		return e
	}
	e := newChannelEntry()
	ap.channels[channel] = e

	logrus.WithFields(logrus.Fields{
		"function":       "entryFor",
		"channel":        channel,
		"total_channels": len(ap.channels),
	}).Debug("Created per-channel configuration")
	return e
}

func (ap *AudioProcessing) dropEntry(channel int) bool {
	ap.channelsMu.Lock()
	defer ap.channelsMu.Unlock()
	if _, ok := ap.channels[channel]; !ok {
		return false
	}
	delete(ap.channels, channel)
	return true
}

// dropStaleEntry removes e only while it is still the published entry.
func (ap *AudioProcessing) dropStaleEntry(channel int, e *channelEntry) {
	ap.channelsMu.Lock()
	defer ap.channelsMu.Unlock()
	if ap.channels[channel] == e {
		delete(ap.channels, channel)
	}
}

func (ap *AudioProcessing) configuredChannels() []int {
	ap.channelsMu.RLock()
	ids := make([]int, 0, len(ap.channels))
	for id := range ap.channels {
		ids = append(ids, id)
	}
	ap.channelsMu.RUnlock()

	sort.Ints(ids)
	return ids
}

// readChannel returns the channel's snapshot, or the defaults when the
// channel exists but was never configured.
func (ap *AudioProcessing) readChannel(channel int, function string) (channelState, error) {
	if err := ap.checkChannel(channel, function); err != nil {
		return channelState{}, err
	}
	if e := ap.existingEntry(channel); e != nil {
		return *e.state.Load(), nil
	}
	return channelState{config: defaultChannel()}, nil
}

// updateChannel runs fn under the channel's lock and publishes its result.
func (ap *AudioProcessing) updateChannel(channel int, function string, fn func(cur channelState) (channelState, error)) error {
	if err := ap.checkChannel(channel, function); err != nil {
		return err
	}

	e := ap.entryFor(channel)
	e.mu.Lock()
	defer e.mu.Unlock()

	// The channel may have been removed while the entry was being created.
	if !ap.registry.ChannelExists(channel) || ap.existingEntry(channel) != e {
		ap.dropStaleEntry(channel, e)
		logrus.WithFields(logrus.Fields{
			"function": function,
			"channel":  channel,
		}).Warn("Channel removed during update")
		return fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}

	next, err := fn(*e.state.Load())
	if err != nil {
		return err
	}
	e.state.Store(&next)
	return nil
}

func (ap *AudioProcessing) applyChannel(channel int, s channelState) error {
	c := s.config
	if err := ap.pipeline.SetRxAgc(channel, c.RxAgcEnabled, c.RxAgcMode); err != nil {
		return pipelineError(err)
	}
	if err := ap.pipeline.SetRxNs(channel, c.RxNsEnabled, c.RxNsMode); err != nil {
		return pipelineError(err)
	}
	if err := ap.pipeline.SetVad(channel, c.VadEnabled, c.VadMode, c.VadDtxDisabled); err != nil {
		return pipelineError(err)
	}
	if s.observer != nil {
		return pipelineError(ap.pipeline.SetRxVadObserver(channel, s.observer))
	}
	return nil
}

// Channel returns the receive-path snapshot of channel.
func (ap *AudioProcessing) Channel(channel int) (PerChannelConfig, error) {
	s, err := ap.readChannel(channel, "Channel")
	if err != nil {
		return PerChannelConfig{}, err
	}
	return s.config, nil
}

// ConfiguredChannels returns the ids that hold per-channel state, ascending.
func (ap *AudioProcessing) ConfiguredChannels() []int {
	return ap.configuredChannels()
}

// ForgetChannel releases the per-channel state of a removed channel. It is
// registered automatically with registries implementing
// interfaces.ChannelRemovalNotifier.
func (ap *AudioProcessing) ForgetChannel(channel int) {
	if !ap.dropEntry(channel) {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "ForgetChannel",
		"channel":  channel,
	}).Info("Released per-channel configuration")
}
