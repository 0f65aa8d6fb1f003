package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishEnded(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	messages, err := pubsub.Subscribe(context.Background(), TopicEnded)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubsub)
	require.NoError(t, publisher.PublishEnded(context.Background(), "SP123", "refresh_failed"))

	select {
	case msg := <-messages:
		var event SessionEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "SP123", event.Address)
		assert.Equal(t, "refresh_failed", event.Reason)
		assert.False(t, event.OccurredAt.IsZero())
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPublishEstablishedAndRefreshed(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	established, err := pubsub.Subscribe(context.Background(), TopicEstablished)
	require.NoError(t, err)
	refreshed, err := pubsub.Subscribe(context.Background(), TopicRefreshed)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubsub)
	require.NoError(t, publisher.PublishEstablished(context.Background(), "SP123"))
	require.NoError(t, publisher.PublishRefreshed(context.Background(), "SP123"))

	select {
	case msg := <-established:
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no established event received")
	}
	select {
	case msg := <-refreshed:
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no refreshed event received")
	}
}
