package broadcast

import (
	"testing"
	"time"

	"turtlesoup/internal/events"
)

func recv(t *testing.T, sub *Subscription) events.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return events.Event{}
}

func TestBroadcaster_SubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	sub := b.Subscribe("alice")
	if sub == nil {
		t.Fatal("Subscribe() returned nil")
	}
	if b.Count() != 1 {
		t.Errorf("clients count = %d, want 1", b.Count())
	}

	b.Unsubscribe(sub)
	if b.Count() != 0 {
		t.Errorf("clients count after unsubscribe = %d, want 0", b.Count())
	}
	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// second call must not panic on a closed channel
	b.Unsubscribe(sub)
}

func TestBroadcaster_PublishBroadcast(t *testing.T) {
	b := NewBroadcaster()
	alice := b.Subscribe("alice")
	bob := b.Subscribe("bob")

	b.Publish(events.Broadcast(events.AllPlayersReady, nil))

	if ev := recv(t, alice); ev.Name != events.AllPlayersReady {
		t.Errorf("alice got %s", ev.Name)
	}
	if ev := recv(t, bob); ev.Name != events.AllPlayersReady {
		t.Errorf("bob got %s", ev.Name)
	}
}

func TestBroadcaster_PublishAddressed(t *testing.T) {
	b := NewBroadcaster()
	alice := b.Subscribe("alice")
	bob := b.Subscribe("bob")

	b.Publish(
		events.To("alice", events.RoomJoined, nil),
		events.BroadcastExcept("alice", events.PlayerJoined, events.PlayerPayload{Username: "alice"}),
	)

	if ev := recv(t, alice); ev.Name != events.RoomJoined {
		t.Errorf("alice got %s, want room_joined", ev.Name)
	}
	if ev := recv(t, bob); ev.Name != events.PlayerJoined {
		t.Errorf("bob got %s, want player_joined", ev.Name)
	}

	select {
	case ev := <-alice.C:
		t.Errorf("alice should not receive %s", ev.Name)
	default:
	}
}

func TestBroadcaster_PreservesOrder(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe("alice")

	b.Publish(
		events.Broadcast(events.NewHost, nil),
		events.Broadcast(events.PlayerLeft, nil),
		events.Broadcast(events.TurnChanged, nil),
	)

	want := []events.Name{events.NewHost, events.PlayerLeft, events.TurnChanged}
	for _, name := range want {
		if ev := recv(t, sub); ev.Name != name {
			t.Errorf("got %s, want %s", ev.Name, name)
		}
	}
}

func TestBroadcaster_DropsSlowSubscriber(t *testing.T) {
	b := NewBroadcaster()
	slow := b.Subscribe("slow")

	for i := 0; i < bufferSize; i++ {
		b.Publish(events.Broadcast(events.TurnChanged, nil))
	}

	done := make(chan bool)
	go func() {
		b.Publish(events.Broadcast(events.TurnChanged, nil))
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Publish blocked on full channel")
	}

	if b.Count() != 0 {
		t.Error("slow subscriber should have been dropped")
	}
	for i := 0; i < bufferSize; i++ {
		<-slow.C
	}
	if _, ok := <-slow.C; ok {
		t.Error("dropped subscriber channel should be closed")
	}
}

func TestBroadcaster_UnsubscribeIdentity(t *testing.T) {
	b := NewBroadcaster()
	b.Subscribe("alice")
	b.Subscribe("alice")
	b.Subscribe("bob")

	b.UnsubscribeIdentity("alice")

	if b.Count() != 1 {
		t.Errorf("clients count = %d, want 1", b.Count())
	}
}
