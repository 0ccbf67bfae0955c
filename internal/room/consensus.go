package room

import (
	"github.com/rs/zerolog/log"

	"github.com/scrumpo/scrumpo/internal/protocol"
)

// minConsensusVotes is how many resolvable values a reveal needs before
// consensus can fire; a single voter agreeing with themselves is not news.
const minConsensusVotes = 2

// displayValue resolves the one authoritative value shown for a participant
// after reveal: an explicit vote broadcast wins over the value carried in
// presence (which exists for late joiners and may be stale). Either source
// must pass the active deck's membership test or the participant shows as
// having no value.
func (e *Engine) displayValue(userID string, p Participant) *string {
	if v, ok := e.votes[userID]; ok {
		return &v
	}
	if p.Value != nil && e.allowed.Contains(*p.Value) {
		v := *p.Value
		return &v
	}
	return nil
}

// checkConsensus evaluates the one-shot celebration latch. Runs after the
// post-reveal debounce and again on every accepted vote broadcast; once the
// latch is set nothing re-fires until a clear re-arms it, no matter what
// arrives later in the cycle.
func (e *Engine) checkConsensus() {
	if e.phase != protocol.PhaseRevealed || e.celebrated {
		return
	}

	values := make([]string, 0, len(e.roster))
	for id, p := range e.roster {
		if !p.HasVoted {
			continue
		}
		v := e.displayValue(id, p)
		if v == nil {
			continue
		}
		values = append(values, *v)
	}

	if len(values) < minConsensusVotes {
		return
	}
	first := values[0]
	for _, v := range values[1:] {
		if v != first {
			return
		}
	}

	e.celebrated = true
	log.Info().Str("room_id", e.roomID).Str("value", first).Msg("consensus reached")
	for _, o := range e.observers {
		o.ConsensusReached(first)
	}
	e.notify()
}
