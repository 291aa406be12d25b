package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
)

func TestRelay_InvalidArgument(t *testing.T) {
	tests := []struct {
		name    string
		room    string
		author  string
		content string
	}{
		{"empty room", "", "u1", "hi"},
		{"empty author", "r1", "", "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeStore{}
			rl := NewRelay(fs, NewBroadcaster(NewRegistry()))

			_, err := rl.Relay(context.Background(), domain.RoomID(tt.room), domain.UserID(tt.author), "Name", tt.content)
			if !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("Relay() error = %v, want ErrInvalidArgument", err)
			}
			if fs.count() != 0 {
				t.Errorf("rejected message reached the store: %d rows", fs.count())
			}
		})
	}
}

func TestRelay_EmptyContentAccepted(t *testing.T) {
	fs := &fakeStore{}
	rl := NewRelay(fs, NewBroadcaster(NewRegistry()))

	msg, err := rl.Relay(context.Background(), "r1", "u1", "U1", "")
	if err != nil {
		t.Fatalf("Relay() unexpected error: %v", err)
	}
	if msg.Content != "" {
		t.Errorf("Content = %q, want empty", msg.Content)
	}
}

func TestRelay_StoreFailureSuppressesBroadcast(t *testing.T) {
	fs := &fakeStore{err: errors.New("disk on fire")}
	reg := NewRegistry()
	rl := NewRelay(fs, NewBroadcaster(reg))

	sink := &fakeSink{}
	if err := reg.Join("r1", "u1", "c1", sink); err != nil {
		t.Fatalf("Join() unexpected error: %v", err)
	}

	_, err := rl.Relay(context.Background(), "r1", "u1", "U1", "hello")
	if !errors.Is(err, core.ErrStore) {
		t.Fatalf("Relay() error = %v, want ErrStore", err)
	}

	for _, ev := range sink.events(t) {
		if ev.Type == EventMessage {
			t.Error("unpersisted message was broadcast")
		}
	}
}

// A sender whose connection drops mid-persist must not lose the message: the
// store call already issued on its behalf completes, and the room still gets
// the broadcast.
func TestRelay_PersistSurvivesSenderDisconnect(t *testing.T) {
	fs := &fakeStore{block: make(chan struct{})}
	reg := NewRegistry()
	rl := NewRelay(fs, NewBroadcaster(reg))

	sink := &fakeSink{}
	if err := reg.Join("r1", "u2", "c2", sink); err != nil {
		t.Fatalf("Join() unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := rl.Relay(ctx, "r1", "u1", "U1", "still here")
		done <- err
	}()

	cancel()        // the sender's connection goes away while the store is busy
	close(fs.block) // the store finishes afterwards

	if err := <-done; err != nil {
		t.Fatalf("Relay() unexpected error after sender disconnect: %v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("stored %d messages, want 1", fs.count())
	}

	found := false
	for _, ev := range sink.events(t) {
		if ev.Type == EventMessage && ev.Content == "still here" {
			found = true
		}
	}
	if !found {
		t.Error("remaining room member did not receive the message")
	}
}

func TestRelay_AuthorNameTruncated(t *testing.T) {
	fs := &fakeStore{}
	rl := NewRelay(fs, NewBroadcaster(NewRegistry()))

	long := strings.Repeat("x", domain.MaxUserNameLen+10)
	msg, err := rl.Relay(context.Background(), "r1", "u1", long, "hi")
	if err != nil {
		t.Fatalf("Relay() unexpected error: %v", err)
	}
	if len(msg.AuthorName) != domain.MaxUserNameLen {
		t.Errorf("AuthorName length = %d, want %d", len(msg.AuthorName), domain.MaxUserNameLen)
	}
}

func TestRelay_BroadcastsPersistedRecord(t *testing.T) {
	fs := &fakeStore{}
	reg := NewRegistry()
	rl := NewRelay(fs, NewBroadcaster(reg))

	sink := &fakeSink{}
	if err := reg.Join("r1", "u1", "c1", sink); err != nil {
		t.Fatalf("Join() unexpected error: %v", err)
	}

	msg, err := rl.Relay(context.Background(), "r1", "u1", "U1", "hello")
	if err != nil {
		t.Fatalf("Relay() unexpected error: %v", err)
	}

	var got []string
	for _, ev := range sink.events(t) {
		if ev.Type == EventMessage {
			got = append(got, ev.ID)
			if ev.CreatedAt.IsZero() {
				t.Error("broadcast event missing server-assigned timestamp")
			}
		}
	}
	if len(got) != 1 || got[0] != msg.ID {
		t.Errorf("broadcast ids = %v, want [%s]", got, msg.ID)
	}
}
