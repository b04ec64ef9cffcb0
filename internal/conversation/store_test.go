package conversation

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/normanking/daymind/internal/bus"
)

func TestNewStore_SeededWithWelcome(t *testing.T) {
	s := NewStore(nil)

	if s.Len() != 1 {
		t.Fatalf("expected 1 seeded entry, got %d", s.Len())
	}
	e, ok := s.At(0)
	if !ok {
		t.Fatal("expected entry at index 0")
	}
	if e.Role != RoleAssistant || e.Content != WelcomeMessage {
		t.Errorf("unexpected seed entry: %+v", e)
	}
	if s.IsPending() {
		t.Error("new store must not be pending")
	}
}

func TestStore_AppendKeepsOrder(t *testing.T) {
	s := NewStore(nil)

	first := s.Append(
		MessageEntry{Role: RoleUser, Content: "Plan my day"},
		MessageEntry{Role: RoleAssistant, Content: "Here's a plan"},
	)
	if first != 1 {
		t.Errorf("expected first index 1, got %d", first)
	}
	s.Append(MessageEntry{Role: RoleUser, Content: "Thanks"})

	got := s.Entries()
	want := []string{WelcomeMessage, "Plan my day", "Here's a plan", "Thanks"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("entry %d: expected %q, got %q", i, w, got[i].Content)
		}
		if got[i].Timestamp.IsZero() {
			t.Errorf("entry %d has no timestamp", i)
		}
	}

	if s.Append() != -1 {
		t.Error("empty append should return -1")
	}
}

func TestStore_EntriesIsACopy(t *testing.T) {
	s := NewStore(nil)
	entries := s.Entries()
	entries[0].Content = "tampered"

	if e, _ := s.At(0); e.Content != WelcomeMessage {
		t.Error("mutating the returned slice changed the log")
	}
}

func TestStore_PendingNeverEntersLog(t *testing.T) {
	s := NewStore(nil)

	s.SetPending("Plan my day", false)
	if s.Len() != 1 {
		t.Errorf("placeholder must not be appended, len=%d", s.Len())
	}

	p, ok := s.PendingPlaceholder()
	if !ok || p.Echo != "Plan my day" || p.Text() != ThinkingText {
		t.Errorf("unexpected placeholder: %+v ok=%v", p, ok)
	}

	items := s.DisplayItems()
	if len(items) != 2 {
		t.Fatalf("expected 2 display items, got %d", len(items))
	}
	if _, ok := items[0].(Committed); !ok {
		t.Error("first item should be committed")
	}
	if _, ok := items[1].(Pending); !ok {
		t.Error("last item should be the pending placeholder")
	}

	// committing the reply clears the placeholder in the same step
	s.Append(MessageEntry{Role: RoleUser, Content: "Plan my day"}, MessageEntry{Role: RoleAssistant, Content: "ok"})
	if s.IsPending() {
		t.Error("append should clear the placeholder")
	}
	for _, item := range s.DisplayItems() {
		if _, ok := item.(Pending); ok {
			t.Error("placeholder still rendered after append")
		}
	}
}

func TestStore_ClearPending(t *testing.T) {
	s := NewStore(nil)
	s.SetPending("", true)
	s.ClearPending()

	if _, ok := s.PendingPlaceholder(); ok {
		t.Error("expected no placeholder after clear")
	}
	if s.Len() != 1 {
		t.Errorf("clear must not touch the log, len=%d", s.Len())
	}
}

func TestStore_AtOutOfRange(t *testing.T) {
	s := NewStore(nil)
	if _, ok := s.At(-1); ok {
		t.Error("expected miss for -1")
	}
	if _, ok := s.At(1); ok {
		t.Error("expected miss past the end")
	}
}

func TestStore_Since(t *testing.T) {
	s := NewStore(nil)
	s.Append(MessageEntry{Role: RoleUser, Content: "a"}, MessageEntry{Role: RoleAssistant, Content: "b"})

	if got := s.Since(1); len(got) != 2 || got[0].Content != "a" {
		t.Errorf("unexpected Since(1): %+v", got)
	}
	if got := s.Since(99); len(got) != 0 {
		t.Errorf("expected nothing past the end, got %d", len(got))
	}
}

func TestStore_Transcript(t *testing.T) {
	s := NewStore(nil)
	s.Append(
		MessageEntry{Role: RoleUser, Content: "buy milk", IsVoice: true},
		MessageEntry{Role: RoleAssistant, Content: "Added to your list"},
	)

	all := s.Transcript(0)
	if strings.Count(all, "\n") != 3 {
		t.Errorf("expected 3 lines, got:\n%s", all)
	}

	recent := s.Transcript(2)
	if strings.Contains(recent, WelcomeMessage) {
		t.Error("recent transcript should skip the welcome")
	}
	if !strings.Contains(recent, "You (voice): buy milk") {
		t.Errorf("missing voice line:\n%s", recent)
	}
	if !strings.Contains(recent, "DayMind: Added to your list") {
		t.Errorf("missing assistant line:\n%s", recent)
	}
}

func TestStore_ConcurrentAppendIsMonotonic(t *testing.T) {
	s := NewStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(MessageEntry{Role: RoleUser, Content: "u"}, MessageEntry{Role: RoleAssistant, Content: "a"})
		}()
	}

	last := s.Len()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			if s.Len() != 101 {
				t.Errorf("expected 1 + 2*50 entries, got %d", s.Len())
			}
			return
		default:
			n := s.Len()
			if n < last {
				t.Fatalf("length went backwards: %d -> %d", last, n)
			}
			last = n
		}
	}
}

func TestStore_PublishesEvents(t *testing.T) {
	b := bus.NewEventBus()
	appended := make(chan bus.Event, 4)
	b.Subscribe(bus.EventTypeMessageAppended, func(e bus.Event) { appended <- e })

	s := NewStore(b)
	s.Append(MessageEntry{Role: RoleAssistant, Content: "sorry", IsError: true})

	select {
	case e := <-appended:
		if e.Data["index"] != 1 || e.Data["is_error"] != true {
			t.Errorf("unexpected event data: %v", e.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no message event")
	}
}

func TestViews(t *testing.T) {
	s := NewStore(nil)
	s.SetPending("hi", false)

	views := Views(s.DisplayItems())
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].Kind != "message" || views[0].Message == nil {
		t.Errorf("unexpected first view: %+v", views[0])
	}
	if views[1].Kind != "pending" || views[1].Pending.Echo != "hi" {
		t.Errorf("unexpected pending view: %+v", views[1])
	}
}
