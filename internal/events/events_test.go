package events

import (
	"encoding/json"
	"testing"
)

func TestEvent_For(t *testing.T) {
	b := Broadcast(PlayerJoined, PlayerPayload{Username: "alice"})
	if !b.For("alice") || !b.For("bob") {
		t.Error("broadcast should reach everyone")
	}

	e := BroadcastExcept("alice", PlayerJoined, PlayerPayload{Username: "alice"})
	if e.For("alice") {
		t.Error("excepted identity should not receive the event")
	}
	if !e.For("bob") {
		t.Error("other identities should receive the event")
	}

	one := To("bob", Error, ErrorPayload{Code: "not_host"})
	if one.For("alice") {
		t.Error("targeted event reached the wrong identity")
	}
	if !one.For("bob") {
		t.Error("targeted event should reach its identity")
	}
}

func TestPayload_WireNames(t *testing.T) {
	data, err := json.Marshal(QuestionAnsweredPayload{
		Username: "bob",
		Question: "Is it alive?",
		Judgment: "no",
		NextTurn: "carol",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"username":"bob","question":"Is it alive?","judgment":"no","next_turn":"carol"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	data, _ = json.Marshal(GameOverPayload{Winner: "carol", FinalQuestion: "q", Surface: "s", Bottom: "b"})
	want = `{"winner":"carol","final_question":"q","surface":"s","bottom":"b"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestNames(t *testing.T) {
	evs := []Event{Broadcast(NewHost, nil), Broadcast(PlayerLeft, nil)}
	names := Names(evs)
	if len(names) != 2 || names[0] != NewHost || names[1] != PlayerLeft {
		t.Errorf("Names() = %v", names)
	}
}
