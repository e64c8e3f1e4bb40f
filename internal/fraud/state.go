package fraud

import "time"

type velocityPhase uint8

const (
	phaseIdle velocityPhase = iota
	phaseInBurst
)

// velocityState is the per-account Rule B state machine: Idle, or InBurst with
// the burst size and the time of its first transaction.
type velocityState struct {
	phase  velocityPhase
	count  int
	anchor time.Time
}

// next is the transition function. The window is anchored at the first
// transaction of the burst; anything later than anchor+window starts a new
// burst of one.
func (s velocityState) next(ts time.Time, window time.Duration) velocityState {
	if s.phase == phaseIdle || ts.Sub(s.anchor) > window {
		return velocityState{phase: phaseInBurst, count: 1, anchor: ts}
	}
	return velocityState{phase: phaseInBurst, count: s.count + 1, anchor: s.anchor}
}

func (s velocityState) breached(maxBurst int) bool {
	return s.phase == phaseInBurst && s.count > maxBurst
}
