package clock

import (
	"context"
	"testing"
	"time"
)

func TestFake_AdvanceFiresDueTimersInOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var order []string
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	c.AfterFunc(time.Second, func() { order = append(order, "a") })
	c.AfterFunc(5*time.Second, func() { order = append(order, "c") })

	c.Advance(3 * time.Second)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected firing order: %v", order)
	}
	if c.Pending() != 1 {
		t.Fatalf("expected one pending timer, got %d", c.Pending())
	}
	if !c.Now().Equal(start.Add(3 * time.Second)) {
		t.Fatalf("unexpected now: %s", c.Now())
	}
}

func TestFake_StopPreventsCallback(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("expected Stop to report a pending timer")
	}
	if timer.Stop() {
		t.Fatal("second Stop should report false")
	}
	c.Advance(time.Minute)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFake_SleepRecordsAndAdvances(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	if err := c.Sleep(context.Background(), 250*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if got := c.Sleeps(); len(got) != 1 || got[0] != 250*time.Millisecond {
		t.Fatalf("unexpected sleeps: %v", got)
	}
	if c.Now() != time.Unix(0, 0).Add(250*time.Millisecond) {
		t.Fatalf("clock not advanced: %s", c.Now())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Sleep(ctx, time.Second); err == nil {
		t.Fatal("expected cancelled sleep to fail")
	}
}

func TestReal_SleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Real{}).Sleep(ctx, time.Hour); err == nil {
		t.Fatal("expected context error")
	}
}
