package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/harbor/chat-app/internal/conversation"
	"github.com/harbor/chat-app/internal/notify"
)

type fakeEventBus struct {
	convEvents [][]byte
	pushJobs   [][]byte
	pushErr    error
}

func (f *fakeEventBus) PublishConversationEvent(_ string, data []byte) error {
	f.convEvents = append(f.convEvents, data)
	return nil
}

func (f *fakeEventBus) PublishPushJob(data []byte) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushJobs = append(f.pushJobs, data)
	return nil
}

type fakePresence struct {
	online map[string]bool
	err    error
}

func (f *fakePresence) OnlineSet(_ context.Context, userIDs []string) (map[string]bool, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		out[id] = f.online[id]
	}
	return out, nil
}

type fakeNotifications struct {
	created []*notify.Notification
	err     error
}

func (f *fakeNotifications) Create(_ context.Context, n *notify.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, n)
	return nil
}

func testMessage() *conversation.Message {
	return &conversation.Message{
		ID:                "m1",
		ConversationID:    "c1",
		SenderID:          "alice",
		SenderDisplayName: "Alice",
		Content:           "hello there",
	}
}

func testMembers() []conversation.Member {
	return []conversation.Member{
		{UserID: "alice", DisplayName: "Alice"},
		{UserID: "bob", DisplayName: "Bob"},
		{UserID: "carol", DisplayName: "Carol"},
	}
}

func pushedUsers(t *testing.T, jobs [][]byte) map[string]bool {
	t.Helper()
	users := make(map[string]bool)
	for _, data := range jobs {
		var job notify.Job
		if err := json.Unmarshal(data, &job); err != nil {
			t.Fatalf("bad push job payload: %v", err)
		}
		users[job.UserID] = true
	}
	return users
}

func TestDispatcher_OfflineRecipientsGetPush(t *testing.T) {
	bus := &fakeEventBus{}
	presence := &fakePresence{online: map[string]bool{"bob": true}}
	store := &fakeNotifications{}
	d := NewDispatcher(bus, presence, store)

	d.MessageAccepted(testMessage(), testMembers())

	if len(bus.convEvents) != 1 {
		t.Fatalf("conversation events = %d, want 1", len(bus.convEvents))
	}
	var ev Event
	if err := json.Unmarshal(bus.convEvents[0], &ev); err != nil {
		t.Fatalf("bad event payload: %v", err)
	}
	if ev.Type != EventNewMessage || ev.Message == nil || ev.Message.ID != "m1" {
		t.Errorf("broadcast event = %+v", ev)
	}

	users := pushedUsers(t, bus.pushJobs)
	if users["alice"] {
		t.Error("sender must not receive a push")
	}
	if users["bob"] {
		t.Error("online member must not receive a push")
	}
	if !users["carol"] {
		t.Error("offline member carol should receive a push")
	}
	if len(store.created) != 1 || store.created[0].UserID != "carol" {
		t.Errorf("notification records = %+v", store.created)
	}
}

func TestDispatcher_RecordPrecedesJob(t *testing.T) {
	bus := &fakeEventBus{}
	presence := &fakePresence{}
	store := &fakeNotifications{err: errors.New("db down")}
	d := NewDispatcher(bus, presence, store)

	d.MessageAccepted(testMessage(), testMembers())

	if len(bus.pushJobs) != 0 {
		t.Errorf("push jobs = %d, want 0 when the record cannot be persisted", len(bus.pushJobs))
	}
}

func TestDispatcher_PresenceFailurePushesEveryone(t *testing.T) {
	bus := &fakeEventBus{}
	presence := &fakePresence{err: errors.New("redis down")}
	store := &fakeNotifications{}
	d := NewDispatcher(bus, presence, store)

	d.MessageAccepted(testMessage(), testMembers())

	users := pushedUsers(t, bus.pushJobs)
	if !users["bob"] || !users["carol"] {
		t.Errorf("pushed users = %v, want both non-sender members", users)
	}
	if users["alice"] {
		t.Error("sender must not receive a push even on presence failure")
	}
}

func TestDispatcher_NotificationBodyTruncated(t *testing.T) {
	bus := &fakeEventBus{}
	store := &fakeNotifications{}
	d := NewDispatcher(bus, &fakePresence{}, store)

	msg := testMessage()
	for len(msg.Content) < 300 {
		msg.Content += " lorem ipsum"
	}
	d.MessageAccepted(msg, testMembers()[:2])

	if len(store.created) != 1 {
		t.Fatalf("records = %d, want 1", len(store.created))
	}
	body := []rune(store.created[0].Body)
	if len(body) != notify.MaxBodyChars+1 || body[len(body)-1] != '…' {
		t.Errorf("body not truncated: %d runes, tail %q", len(body), string(body[len(body)-1]))
	}
}

func TestDispatcher_SoloConversationNoPush(t *testing.T) {
	bus := &fakeEventBus{}
	d := NewDispatcher(bus, &fakePresence{}, &fakeNotifications{})

	d.MessageAccepted(testMessage(), []conversation.Member{{UserID: "alice"}})

	if len(bus.pushJobs) != 0 {
		t.Errorf("push jobs = %d, want 0", len(bus.pushJobs))
	}
	if len(bus.convEvents) != 1 {
		t.Errorf("conversation events = %d, want 1 (live broadcast still happens)", len(bus.convEvents))
	}
}
