package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulatedChannelRegistry(t *testing.T) {
	r := NewSimulatedChannelRegistry(2, 0)

	assert.True(t, r.ChannelExists(0))
	assert.True(t, r.ChannelExists(2))
	assert.False(t, r.ChannelExists(1))

	r.AddChannel(1)
	assert.Equal(t, []int{0, 1, 2}, r.Channels())
}

func TestSimulatedChannelRegistryRemovalListeners(t *testing.T) {
	r := NewSimulatedChannelRegistry(5)

	var removed []int
	r.OnChannelRemoved(func(ch int) { removed = append(removed, ch) })

	r.RemoveChannel(5)
	r.RemoveChannel(5)
	r.RemoveChannel(9)

	assert.Equal(t, []int{5}, removed)
	assert.False(t, r.ChannelExists(5))
}
