package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_DoublesUpToMax(t *testing.T) {
	b := newBackoff(time.Millisecond, 8*time.Millisecond)
	ctx := context.Background()

	want := []time.Duration{
		2 * time.Millisecond,
		4 * time.Millisecond,
		8 * time.Millisecond,
		8 * time.Millisecond, // capped
	}
	for i, w := range want {
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("Wait #%d error: %v", i, err)
		}
		if b.Current() != w {
			t.Errorf("after Wait #%d: Current() = %v, want %v", i, b.Current(), w)
		}
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := newBackoff(time.Millisecond, 100*time.Millisecond)
	ctx := context.Background()

	if err := b.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if b.Current() == time.Millisecond {
		t.Fatal("backoff did not grow before reset")
	}

	b.Reset()
	if b.Current() != time.Millisecond {
		t.Errorf("Current() after Reset = %v, want %v", b.Current(), time.Millisecond)
	}
}

func TestBackoff_WaitCanceled(t *testing.T) {
	b := newBackoff(time.Minute, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() { errs <- b.Wait(ctx) }()

	cancel()
	select {
	case err := <-errs:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}
