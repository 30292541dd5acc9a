package chatws

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/yuchen-w/CampusMarketBack/internal/services"
)

func recvPayload(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case payload, ok := <-ch:
		if !ok {
			t.Fatal("send channel closed unexpectedly")
		}
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
	}
	return nil
}

func decodeEvent(t *testing.T, payload []byte) Event {
	t.Helper()
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return event
}

func TestHubDeliversToConversationInOrder(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	first := NewClient(hub, nil, 1, 5)
	second := NewClient(hub, nil, 2, 5)
	hub.Register(first)
	hub.Register(second)

	hub.broadcast <- &Event{Type: "chat.message", ID: 10, ConversationID: 5, SenderID: 1, Text: "hey"}
	hub.broadcast <- &Event{Type: "chat.message", ID: 11, ConversationID: 5, SenderID: 2, Text: "hi back"}

	for _, client := range []*Client{first, second} {
		one := decodeEvent(t, recvPayload(t, client.send))
		two := decodeEvent(t, recvPayload(t, client.send))
		if one.ID != 10 || two.ID != 11 {
			t.Fatalf("out of order delivery: got ids %d, %d", one.ID, two.ID)
		}
		if one.Text != "hey" || two.Text != "hi back" {
			t.Fatalf("unexpected payloads: %+v, %+v", one, two)
		}
	}
}

func TestHubIsolatesConversations(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	member := NewClient(hub, nil, 1, 5)
	outsider := NewClient(hub, nil, 3, 9)
	hub.Register(member)
	hub.Register(outsider)

	hub.broadcast <- &Event{Type: "chat.message", ID: 10, ConversationID: 5, SenderID: 1, Text: "private"}

	recvPayload(t, member.send)

	select {
	case payload := <-outsider.send:
		t.Fatalf("outsider received payload: %s", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, 1, 5)
	hub.Register(client)
	hub.Unregister(client)

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected send channel to be closed, got payload")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed after unregister")
	}
}

func TestHubDropsSlowConsumer(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	healthy := NewClient(hub, nil, 1, 5)
	slow := &Client{hub: hub, userID: 2, conversationID: 5, send: make(chan []byte)}
	hub.Register(healthy)
	hub.Register(slow)

	// Nothing reads slow.send, so delivery to it cannot proceed and the
	// hub must cut it loose instead of stalling the group.
	hub.broadcast <- &Event{Type: "chat.message", ID: 10, ConversationID: 5, SenderID: 1, Text: "hello"}

	recvPayload(t, healthy.send)

	select {
	case _, ok := <-slow.send:
		if ok {
			t.Fatal("expected slow consumer channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("slow consumer was not dropped")
	}
}

func TestWriteErrorAfterHubDroppedClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	healthy := NewClient(hub, nil, 1, 5)
	slow := &Client{hub: hub, userID: 2, conversationID: 5, send: make(chan []byte)}
	hub.Register(healthy)
	hub.Register(slow)

	hub.broadcast <- &Event{Type: "chat.message", ID: 10, ConversationID: 5, SenderID: 1, Text: "hello"}
	recvPayload(t, healthy.send)

	select {
	case _, ok := <-slow.send:
		if ok {
			t.Fatal("expected slow consumer channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("slow consumer was not dropped")
	}

	// The dropped client's read goroutine can still report errors; that
	// must be a quiet no-op, not a send on a closed channel.
	writeError(slow, "message text must not be empty")
}

func TestHubEvictsOrderingLockWithEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, 1, 5)
	hub.Register(client)
	hub.conversationLock(5)

	hub.Unregister(client)

	deadline := time.Now().Add(time.Second)
	for {
		hub.mu.Lock()
		_, held := hub.locks[5]
		hub.mu.Unlock()
		if !held {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("ordering lock survived the room it belongs to")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWriteErrorReachesOnlySender(t *testing.T) {
	hub := NewHub()
	client := NewClient(hub, nil, 1, 5)

	writeError(client, "message text must not be empty")

	event := decodeEvent(t, recvPayload(t, client.send))
	if event.Type != "error" {
		t.Fatalf("expected error event, got %q", event.Type)
	}
	if event.Error != "message text must not be empty" {
		t.Fatalf("unexpected error text: %q", event.Error)
	}
}

func TestWriteErrorDoesNotBlockOnFullChannel(t *testing.T) {
	client := &Client{send: make(chan []byte)}

	done := make(chan struct{})
	go func() {
		writeError(client, "dropped")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writeError blocked on a full send channel")
	}
}

func TestSendFailureReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{services.ErrInvalidInput, "message text must not be empty"},
		{services.ErrNotParticipant, "not a conversation member"},
		{errors.New("connection reset"), "failed to send message"},
	}
	for _, tc := range cases {
		if got := sendFailureReason(tc.err); got != tc.want {
			t.Fatalf("sendFailureReason(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
