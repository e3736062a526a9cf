package photo

import (
	"context"
	"testing"
	"time"
)

func TestSlotLastInvocationWins(t *testing.T) {
	var s Slot

	t1, ctx1 := s.Begin(context.Background())
	t2, ctx2 := s.Begin(context.Background())

	if ctx1.Err() == nil {
		t.Fatal("starting a new ticket must cancel the previous one")
	}
	if ctx2.Err() != nil {
		t.Fatal("current ticket must stay live")
	}

	newer := &Result{Width: 2}
	if !s.Commit(t2, newer) {
		t.Fatal("current ticket must commit")
	}
	if s.Commit(t1, &Result{Width: 1}) {
		t.Fatal("stale ticket must not commit")
	}
	if s.Current() != newer {
		t.Fatal("stale result overwrote the newer one")
	}
}

func TestSlotRun(t *testing.T) {
	var s Slot
	p := NewPipeline(Options{})

	res, err := s.Run(context.Background(), p, Source{Data: pngBytes(t, 30, 20), ContentType: "image/png"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Current() != res {
		t.Fatal("Run must commit its result")
	}

	if _, err := s.Run(context.Background(), p, Source{Data: []byte("x"), ContentType: "text/plain"}); err == nil {
		t.Fatal("expected error for non-image")
	}
	if s.Current() != res {
		t.Fatal("failed run must keep previous result")
	}
}

func TestSlotRegistry(t *testing.T) {
	r := NewSlotRegistry(time.Minute)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	a := r.Get("a")
	if r.Get("a") != a {
		t.Fatal("same session must get the same slot")
	}
	r.Get("b")
	if r.Len() != 2 {
		t.Fatalf("expected 2 slots, got %d", r.Len())
	}

	now = now.Add(2 * time.Minute)
	r.Get("b")
	if r.Len() != 1 {
		t.Fatalf("idle slot should be evicted, got %d", r.Len())
	}
	if r.Get("a") == a {
		t.Fatal("evicted session must get a fresh slot")
	}
}
