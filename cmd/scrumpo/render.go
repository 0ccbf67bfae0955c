package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/scrumpo/scrumpo/internal/protocol"
	"github.com/scrumpo/scrumpo/internal/room"
)

const ansiReset = "\x1b[0m"

var confettiColors = []string{
	"\x1b[31m", "\x1b[33m", "\x1b[32m", "\x1b[36m", "\x1b[34m", "\x1b[35m",
}

// renderer is a room observer that paints the room state to the terminal.
// Callbacks arrive on the engine goroutine; writes are serialized so the
// input loop's prompts never interleave mid-line.
type renderer struct {
	mu  sync.Mutex
	out io.Writer
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out}
}

func (r *renderer) RoomUpdated(v room.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "\n─── room %s", shortID(v.RoomID))
	if !v.Connected {
		b.WriteString("  (connection lost, reveal/clear disabled)")
	}
	b.WriteString("\n")

	for _, p := range v.Participants {
		marker := " "
		if p.UserID == v.MyID {
			marker = "*"
		}
		switch {
		case v.Phase == protocol.PhaseRevealed:
			val := "—"
			if p.Value != nil {
				val = *p.Value
			}
			fmt.Fprintf(&b, " %s %-20s %s\n", marker, p.Name, val)
		case p.HasVoted:
			fmt.Fprintf(&b, " %s %-20s ✓\n", marker, p.Name)
		default:
			fmt.Fprintf(&b, " %s %-20s …\n", marker, p.Name)
		}
	}

	if v.Phase == protocol.PhaseHidden {
		fmt.Fprintf(&b, " cards: %s\n", strings.Join(v.Deck.Cards, " "))
		if v.MyVote != nil {
			fmt.Fprintf(&b, " your vote: %s (hidden)\n", *v.MyVote)
		}
	}
	fmt.Fprint(r.out, b.String())
}

func (r *renderer) ConsensusReached(value string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	b.WriteString("\n")
	for row := 0; row < 3; row++ {
		for col := 0; col < 24; col++ {
			b.WriteString(confettiColors[(row+col)%len(confettiColors)])
			b.WriteString("*")
		}
		b.WriteString(ansiReset + "\n")
	}
	fmt.Fprintf(&b, "  consensus on %s!\n", value)
	fmt.Fprint(r.out, b.String())
}

func shortID(roomID string) string {
	if len(roomID) > 8 {
		return roomID[:8]
	}
	return roomID
}
