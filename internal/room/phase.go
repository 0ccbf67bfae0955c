package room

import (
	"github.com/rs/zerolog/log"

	"github.com/scrumpo/scrumpo/internal/identity"
	"github.com/scrumpo/scrumpo/internal/protocol"
)

// handleBroadcast validates and dispatches one broadcast envelope. Anything
// malformed is dropped here and never reaches the reconcilers.
func (e *Engine) handleBroadcast(env protocol.Envelope) {
	payload, err := protocol.ParsePayload(env)
	if err != nil {
		log.Debug().Err(err).Msg("dropping malformed broadcast")
		return
	}

	switch p := payload.(type) {
	case protocol.RevealPayload:
		e.toRevealed()
		e.notify()

	case protocol.ClearPayload:
		e.applyClear()
		e.notify()

	case protocol.UserVotePayload:
		e.applyUserVote(p)
	}
}

// toRevealed performs the hidden→revealed transition, whether triggered by a
// reveal broadcast or by presence reconciliation observing a revealer. A cast
// local vote is re-broadcast and republished in presence so participants who
// join after the reveal still see it; the consensus check is deferred to let
// in-flight vote broadcasts land first.
func (e *Engine) toRevealed() {
	if e.phase == protocol.PhaseRevealed {
		return
	}
	e.phase = protocol.PhaseRevealed
	if e.myVote != nil {
		e.broadcastVote(*e.myVote)
	}
	e.track()
	e.scheduleConsensusCheck()
}

// applyClear is the only path back to hidden. It empties the votes map,
// clears the local vote, re-arms the consensus latch and republishes
// presence with the vote withdrawn.
func (e *Engine) applyClear() {
	e.votes = make(map[string]string)
	e.myVote = nil
	e.celebrated = false
	e.stopConsensusTimer()
	e.phase = protocol.PhaseHidden
	e.track()
}

// applyUserVote merges an explicit vote broadcast into the votes map.
// Accepted only from well-formed senders, only while revealed (votes are
// broadcast purely for post-reveal visibility) and only for values the active
// deck allows. Last write per sender wins; the relay gives no total order, so
// rapid resends may legitimately resolve differently across observers.
func (e *Engine) applyUserVote(p protocol.UserVotePayload) {
	if e.phase != protocol.PhaseRevealed {
		return
	}
	if !identity.IsUUIDv4(p.UserID) {
		log.Debug().Str("user_id", p.UserID).Msg("dropping vote with malformed sender id")
		return
	}
	if !e.allowed.Contains(p.Value) {
		log.Debug().Str("value", p.Value).Msg("dropping vote outside the active deck")
		return
	}
	e.votes[p.UserID] = p.Value
	e.notify()
	e.checkConsensus()
}

func (e *Engine) scheduleConsensusCheck() {
	e.stopConsensusTimer()
	e.consensusTimer = e.clock.NewTimer(e.cfg.ConsensusDelay)
}

// stopConsensusTimer stops and drains a pending timer, per the time.Timer
// documentation, so the run loop never sees a stale fire.
func (e *Engine) stopConsensusTimer() {
	if e.consensusTimer == nil {
		return
	}
	if !e.consensusTimer.Stop() {
		select {
		case <-e.consensusTimer.Chan():
		default:
		}
	}
	e.consensusTimer = nil
}
