package room

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvFrame(t *testing.T, sub *Subscription) string {
	t.Helper()

	select {
	case frame, ok := <-sub.Frames():
		require.True(t, ok, "subscription closed unexpectedly")
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

func assertNoFrame(t *testing.T, sub *Subscription) {
	t.Helper()

	select {
	case frame := <-sub.Frames():
		t.Fatalf("unexpected frame %q", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := NewBroadcaster()
	first := b.Join("hub1")
	second := b.Join("hub1")

	b.Publish("hub1", "stroke")

	assert.Equal(t, "stroke", recvFrame(t, first))
	assert.Equal(t, "stroke", recvFrame(t, second))
}

func TestPublishOrderIsPreservedPerSubscriber(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Join("hub1")

	for i := 0; i < 10; i++ {
		b.Publish("hub1", fmt.Sprint(i))
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprint(i), recvFrame(t, sub))
	}
}

func TestPublishIsScopedToHub(t *testing.T) {
	b := NewBroadcaster()
	inRoom := b.Join("hub1")
	elsewhere := b.Join("hub2")

	b.Publish("hub1", "private")

	assert.Equal(t, "private", recvFrame(t, inRoom))
	assertNoFrame(t, elsewhere)
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := NewBroadcaster()

	b.Publish("empty", "into the void")

	assert.Zero(t, b.SubscriberCount("empty"))
}

func TestSlowSubscriberMissesFrames(t *testing.T) {
	b := NewBroadcaster()
	slow := b.Join("hub1")

	// Nobody drains the subscription, so everything past the queue
	// capacity is dropped rather than blocking the publisher.
	for i := 0; i < subscriptionBuffer+10; i++ {
		b.Publish("hub1", fmt.Sprint(i))
	}

	received := 0
	for {
		select {
		case <-slow.Frames():
			received++
		default:
			assert.Equal(t, subscriptionBuffer, received)
			return
		}
	}
}

func TestCloseCollectsEmptyRoom(t *testing.T) {
	b := NewBroadcaster()
	first := b.Join("hub1")
	second := b.Join("hub1")
	require.Equal(t, 2, b.SubscriberCount("hub1"))

	first.Close()
	assert.Equal(t, 1, b.SubscriberCount("hub1"))

	second.Close()
	assert.Zero(t, b.SubscriberCount("hub1"))

	_, ok := <-first.Frames()
	assert.False(t, ok, "closed subscription should have a closed channel")
}

func TestQueuedFramesSurviveClose(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Join("hub1")

	b.Publish("hub1", "parting gift")
	sub.Close()

	frame, ok := <-sub.Frames()
	assert.True(t, ok)
	assert.Equal(t, "parting gift", frame)

	_, ok = <-sub.Frames()
	assert.False(t, ok)
}

func TestPublishAfterCloseDoesNotPanic(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Join("hub1")
	other := b.Join("hub1")

	sub.Close()
	sub.Close() // idempotent

	b.Publish("hub1", "still alive")
	assert.Equal(t, "still alive", recvFrame(t, other))
}

func TestBroadcastersAreIndependent(t *testing.T) {
	first := NewBroadcaster()
	second := NewBroadcaster()

	sub := second.Join("hub1")
	first.Publish("hub1", "wrong instance")

	assertNoFrame(t, sub)
}
