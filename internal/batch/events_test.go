package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeStatus, Source: "1"})
	bus.Publish(Event{Type: EventTypeProgress, Source: "2"})
	bus.Publish(Event{Type: EventTypeProgress, Source: "3"})

	events := bus.Since(1)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].Seq)
	assert.Equal(t, int64(3), events[1].Seq)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Source: "1"})
	bus.Publish(Event{Source: "2"})
	bus.Publish(Event{Source: "3"})

	events := bus.Since(0)
	require.Len(t, events, 2)
	assert.Equal(t, "2", events[0].Source)
	assert.Equal(t, "3", events[1].Source)
}
