package action

import "time"

// RetryPolicy schedules durable cross-tick retries for queue entries.
// Exponential with a hard ceiling: base, 2*base, 4*base, ... capped at Cap.
type RetryPolicy struct {
	Base time.Duration
	Cap  time.Duration
}

func NewRetryPolicy(base, cap time.Duration) RetryPolicy {
	if base <= 0 {
		base = 2 * time.Second
	}
	if cap < base {
		cap = base
	}
	return RetryPolicy{Base: base, Cap: cap}
}

// Delay returns the wait before the next attempt given the number of
// attempts already made.
func (p RetryPolicy) Delay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	d := p.Base
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= p.Cap || d <= 0 {
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// Reschedule stamps the entry after a transient failure: attempt counted,
// next retry pushed out, entry left in place.
func (p RetryPolicy) Reschedule(e Entry, now time.Time) Entry {
	out := e.Clone()
	out.AttemptCount++
	last := now
	out.LastAttemptAt = &last
	next := now.Add(p.Delay(out.AttemptCount - 1))
	out.NextRetryAt = &next
	return out
}
