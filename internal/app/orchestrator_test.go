package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
)

// fakeSink records every frame delivered to one connection.
type fakeSink struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
}

func (s *fakeSink) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("buffer full")
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSink) Close() {}

type wireEvent struct {
	Type       string    `json:"type"`
	Count      int       `json:"count"`
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s *fakeSink) events(t *testing.T) []wireEvent {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wireEvent, 0, len(s.frames))
	for _, f := range s.frames {
		var ev wireEvent
		if err := json.Unmarshal(f, &ev); err != nil {
			t.Fatalf("bad frame %q: %v", f, err)
		}
		out = append(out, ev)
	}
	return out
}

func (s *fakeSink) presenceCounts(t *testing.T) []int {
	t.Helper()
	var out []int
	for _, ev := range s.events(t) {
		if ev.Type == EventPresence {
			out = append(out, ev.Count)
		}
	}
	return out
}

// fakeStore is an in-memory core.MessageStore. With block set, CreateMessage
// stalls until the channel closes, honoring ctx cancellation while it waits.
type fakeStore struct {
	mu    sync.Mutex
	msgs  []*domain.Message
	err   error
	block chan struct{}
}

func (fs *fakeStore) CreateMessage(ctx context.Context, roomID domain.RoomID, authorID domain.UserID, authorName, content string) (*domain.Message, error) {
	if fs.block != nil {
		select {
		case <-fs.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.err != nil {
		return nil, fs.err
	}
	msg := &domain.Message{
		ID:         fmt.Sprintf("m%d", len(fs.msgs)+1),
		RoomID:     string(roomID),
		AuthorID:   string(authorID),
		AuthorName: authorName,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	fs.msgs = append(fs.msgs, msg)
	return msg, nil
}

func (fs *fakeStore) FindMessages(_ context.Context, roomID domain.RoomID) ([]*domain.Message, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []*domain.Message
	for _, m := range fs.msgs {
		if m.RoomID == string(roomID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (fs *fakeStore) count() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.msgs)
}

func connect(t *testing.T, o *Orchestrator, conn string) *fakeSink {
	t.Helper()
	sink := &fakeSink{}
	o.Connect(core.ConnID(conn), sink, nil)
	return sink
}

func join(t *testing.T, o *Orchestrator, conn, room, user string) {
	t.Helper()
	if err := o.Join(core.ConnID(conn), domain.RoomID(room), domain.UserID(user)); err != nil {
		t.Fatalf("Join(%s, %s, %s) unexpected error: %v", conn, room, user, err)
	}
}

// The two-tabs scenario: a user with two open connections must neither
// inflate the count nor cause a spurious leave when one tab closes.
func TestOrchestrator_PresenceWithMultipleTabs(t *testing.T) {
	o := NewOrchestrator(&fakeStore{}, nil)

	c1 := connect(t, o, "c1")
	join(t, o, "c1", "R", "u1")
	c2 := connect(t, o, "c2")
	join(t, o, "c2", "R", "u1") // second tab
	c3 := connect(t, o, "c3")
	join(t, o, "c3", "R", "u2")

	if got := o.Registry.CountDistinctUsers("R"); got != 2 {
		t.Fatalf("CountDistinctUsers() = %d, want 2", got)
	}

	o.Disconnect("c1") // u1 still has c2: no presence event, count stays 2
	if got := o.Registry.CountDistinctUsers("R"); got != 2 {
		t.Fatalf("after c1 disconnect: CountDistinctUsers() = %d, want 2", got)
	}

	o.Disconnect("c2") // u1 gone: one presence event with count 1
	if got := o.Registry.CountDistinctUsers("R"); got != 1 {
		t.Fatalf("after c2 disconnect: CountDistinctUsers() = %d, want 1", got)
	}

	// c1 saw: its own join (1), u2's join (2). Nothing for c2's join.
	if got := c1.presenceCounts(t); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("c1 presence = %v, want [1 2]", got)
	}
	// c2 saw: u2's join (2) only; it joined silently.
	if got := c2.presenceCounts(t); len(got) != 1 || got[0] != 2 {
		t.Errorf("c2 presence = %v, want [2]", got)
	}
	// c3 saw: its own join (2), then u1 fully leaving (1).
	if got := c3.presenceCounts(t); len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Errorf("c3 presence = %v, want [2 1]", got)
	}
}

func TestOrchestrator_MessageRoundTrip(t *testing.T) {
	o := NewOrchestrator(&fakeStore{}, nil)

	connect(t, o, "a")
	join(t, o, "a", "R", "alice")
	b := connect(t, o, "b")
	join(t, o, "b", "R", "bob")

	msg, err := o.Message(context.Background(), "R", "alice", "Alice", "hi there")
	if err != nil {
		t.Fatalf("Message() unexpected error: %v", err)
	}
	if msg.ID == "" || msg.CreatedAt.IsZero() {
		t.Errorf("persisted message missing server-assigned id/timestamp: %+v", msg)
	}

	var got *wireEvent
	for _, ev := range b.events(t) {
		if ev.Type == EventMessage {
			ev := ev
			got = &ev
		}
	}
	if got == nil {
		t.Fatal("recipient never received the message event")
	}
	if got.ID != msg.ID || got.RoomID != "R" || got.AuthorID != "alice" ||
		got.AuthorName != "Alice" || got.Content != "hi there" {
		t.Errorf("received event = %+v, want echo of persisted record %+v", got, msg)
	}
}

func TestOrchestrator_MessageStaysInRoom(t *testing.T) {
	o := NewOrchestrator(&fakeStore{}, nil)

	inRoom := connect(t, o, "c1")
	join(t, o, "c1", "R", "u1")
	elsewhere := connect(t, o, "c2")
	join(t, o, "c2", "other", "u2")

	if _, err := o.Message(context.Background(), "R", "u1", "U1", "hello"); err != nil {
		t.Fatalf("Message() unexpected error: %v", err)
	}

	found := false
	for _, ev := range inRoom.events(t) {
		if ev.Type == EventMessage {
			found = true
		}
	}
	if !found {
		t.Error("room member did not receive the message")
	}
	for _, ev := range elsewhere.events(t) {
		if ev.Type == EventMessage {
			t.Error("member of another room received the message")
		}
	}
}

func TestOrchestrator_PersistsWithEmptyRoom(t *testing.T) {
	fs := &fakeStore{}
	o := NewOrchestrator(fs, nil)

	msg, err := o.Message(context.Background(), "ghost-room", "u1", "U1", "anyone?")
	if err != nil {
		t.Fatalf("Message() unexpected error: %v", err)
	}
	if msg == nil || fs.count() != 1 {
		t.Errorf("message not persisted for empty room: stored=%d", fs.count())
	}
}

func TestOrchestrator_SlowConsumerKicked(t *testing.T) {
	o := NewOrchestrator(&fakeStore{}, KickSlowPolicy{})

	slow := &fakeSink{fail: true}
	canceled := make(chan struct{})
	var once sync.Once
	o.Connect("slow", slow, func() { once.Do(func() { close(canceled) }) })
	join(t, o, "slow", "R", "u1")

	ok := connect(t, o, "ok")
	join(t, o, "ok", "R", "u2")

	if _, err := o.Message(context.Background(), "R", "u2", "U2", "ping"); err != nil {
		t.Fatalf("Message() unexpected error: %v", err)
	}

	select {
	case <-canceled:
	default:
		t.Error("slow consumer was not canceled")
	}

	// Fan-out to the healthy member still happened.
	found := false
	for _, ev := range ok.events(t) {
		if ev.Type == EventMessage {
			found = true
		}
	}
	if !found {
		t.Error("healthy member did not receive the message despite slow peer")
	}
}

func TestOrchestrator_DisconnectWithoutJoin(t *testing.T) {
	o := NewOrchestrator(&fakeStore{}, nil)
	connect(t, o, "c1")
	o.Disconnect("c1") // must be a clean no-op
	if got := o.Registry.CountDistinctUsers("R"); got != 0 {
		t.Errorf("CountDistinctUsers() = %d, want 0", got)
	}
}
