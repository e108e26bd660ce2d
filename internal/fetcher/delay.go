package fetcher

import "time"

const (
	// DefaultDelay is the pause between pages.
	DefaultDelay = 200 * time.Millisecond
	// maxScaledDelay caps ScaledDelay.
	maxScaledDelay = time.Second
	// scaledStep is added per hundred messages fetched, pro rata.
	scaledStep = 50 * time.Millisecond
)

// DelayPolicy returns the pause before the next page given how many messages
// have been fetched so far.
type DelayPolicy func(fetched int) time.Duration

// FixedDelay always waits d.
func FixedDelay(d time.Duration) DelayPolicy {
	return func(int) time.Duration { return d }
}

// ScaledDelay starts at base and grows linearly by 50ms per hundred messages
// fetched, capped at one second.
func ScaledDelay(base time.Duration) DelayPolicy {
	return func(fetched int) time.Duration {
		d := base + time.Duration(fetched)*scaledStep/100
		if d > maxScaledDelay {
			return maxScaledDelay
		}
		return d
	}
}

// PolicyFor maps a configured mode name to a policy.
func PolicyFor(mode string, base time.Duration) DelayPolicy {
	if mode == "scaled" {
		return ScaledDelay(base)
	}
	return FixedDelay(base)
}
