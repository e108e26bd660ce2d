package fetcher

import (
	"testing"
	"time"
)

func TestScaledDelay(t *testing.T) {
	p := ScaledDelay(200 * time.Millisecond)
	cases := map[int]time.Duration{
		0:     200 * time.Millisecond,
		10:    205 * time.Millisecond,
		150:   275 * time.Millisecond,
		100:   250 * time.Millisecond,
		500:   450 * time.Millisecond,
		1600:  time.Second,
		10000: time.Second,
	}
	for fetched, want := range cases {
		if got := p(fetched); got != want {
			t.Errorf("ScaledDelay(%d) = %s, want %s", fetched, got, want)
		}
	}
}

func TestPolicyFor(t *testing.T) {
	if got := PolicyFor("fixed", 300*time.Millisecond)(5000); got != 300*time.Millisecond {
		t.Fatalf("fixed policy grew: %s", got)
	}
	if got := PolicyFor("scaled", 200*time.Millisecond)(200); got != 300*time.Millisecond {
		t.Fatalf("unexpected scaled delay: %s", got)
	}
}
