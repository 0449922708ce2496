package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBusPublishDeliversToMatchingSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(MonthCompleted)
	defer bus.Unsubscribe(sub)

	bus.Publish(&Event{Type: MonthCompleted, Timestamp: time.Now(), Data: &MonthCompletedData{Month: 3}})
	bus.Publish(&Event{Type: TickWarning, Timestamp: time.Now(), Data: &TickWarningData{NextMonth: 4}})

	select {
	case evt := <-sub.C:
		assert.Equal(t, MonthCompleted, evt.Type)
	default:
		t.Fatal("expected a buffered event")
	}

	select {
	case <-sub.C:
		t.Fatal("subscriber should not have received an unsubscribed event type")
	default:
	}
}

func TestBusPublishDropsOnFullMailbox(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	for i := 0; i < mailboxCapacity+5; i++ {
		bus.Publish(&Event{Type: ClockSync, Timestamp: time.Now(), Data: &ClockSyncData{CurrentMonth: i}})
	}

	assert.Equal(t, int64(5), sub.Dropped.Load())
	assert.Len(t, sub.C, mailboxCapacity)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	bus.Unsubscribe(sub)

	bus.Publish(&Event{Type: ClockSync, Timestamp: time.Now(), Data: &ClockSyncData{}})

	assert.Empty(t, sub.C)
}
