package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub(t *testing.T) {
	t.Run("Delivers to topic subscribers only", func(t *testing.T) {
		hub := NewHub()
		busSub := hub.NewSubscriber(4)
		hub.Subscribe("bus:3", busSub)
		routeSub := hub.NewSubscriber(4)
		hub.Subscribe("route:2", routeSub)

		delivered, dropped := hub.Publish("bus:3", "hello")
		assert.Equal(t, 1, delivered)
		assert.Equal(t, 0, dropped)

		msg := <-busSub.C()
		assert.Equal(t, "bus:3", msg.Topic)
		assert.Equal(t, "hello", msg.Payload)

		select {
		case <-routeSub.C():
			t.Fatal("route subscriber must not receive bus topic messages")
		default:
		}
	})

	t.Run("One subscriber can join several topics", func(t *testing.T) {
		hub := NewHub()
		sub := hub.NewSubscriber(4)
		hub.Subscribe("bus:3", sub)
		hub.Subscribe("route:2", sub)

		hub.Publish("bus:3", 1)
		hub.Publish("route:2", 2)

		first := <-sub.C()
		second := <-sub.C()
		assert.Equal(t, "bus:3", first.Topic)
		assert.Equal(t, "route:2", second.Topic)
	})

	t.Run("Publishing to an empty topic delivers nothing", func(t *testing.T) {
		hub := NewHub()
		delivered, dropped := hub.Publish("bus:99", "x")
		assert.Zero(t, delivered)
		assert.Zero(t, dropped)
	})

	t.Run("Slow subscriber drops instead of blocking", func(t *testing.T) {
		hub := NewHub()
		sub := hub.NewSubscriber(1)
		hub.Subscribe("bus:3", sub)

		delivered, dropped := hub.Publish("bus:3", "first")
		assert.Equal(t, 1, delivered)
		assert.Equal(t, 0, dropped)

		delivered, dropped = hub.Publish("bus:3", "second")
		assert.Equal(t, 0, delivered)
		assert.Equal(t, 1, dropped)

		msg := <-sub.C()
		assert.Equal(t, "first", msg.Payload)
	})

	t.Run("Unsubscribe stops delivery for that topic", func(t *testing.T) {
		hub := NewHub()
		sub := hub.NewSubscriber(4)
		hub.Subscribe("bus:3", sub)
		hub.Subscribe("route:2", sub)

		hub.Unsubscribe("bus:3", sub)
		assert.Equal(t, 0, hub.SubscriberCount("bus:3"))
		assert.Equal(t, 1, hub.SubscriberCount("route:2"))

		delivered, _ := hub.Publish("bus:3", "x")
		assert.Zero(t, delivered)
	})

	t.Run("Close leaves every topic and closes the channel", func(t *testing.T) {
		hub := NewHub()
		sub := hub.NewSubscriber(4)
		hub.Subscribe("bus:3", sub)
		hub.Subscribe("route:2", sub)

		hub.Close(sub)
		assert.Equal(t, 0, hub.SubscriberCount("bus:3"))
		assert.Equal(t, 0, hub.SubscriberCount("route:2"))

		_, open := <-sub.C()
		assert.False(t, open)
	})

	t.Run("Double close is safe", func(t *testing.T) {
		hub := NewHub()
		sub := hub.NewSubscriber(4)
		hub.Subscribe("bus:3", sub)

		hub.Close(sub)
		require.NotPanics(t, func() { hub.Close(sub) })
	})

	t.Run("Subscribe after close is ignored", func(t *testing.T) {
		hub := NewHub()
		sub := hub.NewSubscriber(4)
		hub.Close(sub)

		hub.Subscribe("bus:3", sub)
		assert.Equal(t, 0, hub.SubscriberCount("bus:3"))
	})
}
