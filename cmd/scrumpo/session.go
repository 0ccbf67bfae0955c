package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrumpo/scrumpo/internal/room"
)

// runRoom drives one interactive room session: the engine runs in the
// background while stdin lines are dispatched as commands. Typing a card
// value casts a vote; reveal/clear/id/leave do what they say.
func runRoom(ctx context.Context, cmd *cobra.Command, eng *room.Engine, roomID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := cmd.OutOrStdout()
	eng.AddObserver(newRenderer(out))

	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run(ctx) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
	}()

	printHelp(out)
	for {
		select {
		case err := <-runErr:
			return err

		case line, ok := <-lines:
			if !ok {
				// stdin closed; tear the session down.
				cancel()
				return <-runErr
			}
			switch line {
			case "":
			case "help", "h", "?":
				printHelp(out)
			case "id":
				fmt.Fprintf(out, "room id: %s\n", roomID)
			case "link":
				fmt.Fprintf(out, "scrumpo join %s\n", roomID)
			case "reveal", "r":
				if err := eng.Reveal(ctx); err != nil {
					fmt.Fprintf(out, "reveal failed: %v\n", err)
				}
			case "clear", "c":
				if err := eng.Clear(ctx); err != nil {
					fmt.Fprintf(out, "clear failed: %v\n", err)
				}
			case "leave", "quit", "q":
				if err := eng.Leave(ctx); err != nil {
					fmt.Fprintf(out, "leave failed: %v\n", err)
				}
				return <-runErr
			default:
				if err := eng.SelectCard(ctx, line); err != nil {
					fmt.Fprintf(out, "cannot vote %q: %v\n", line, err)
				}
			}
		}
	}
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `commands:
  <card>     cast or change your vote
  reveal, r  uncover all votes
  clear, c   start a fresh round
  id         print the room id
  link       print the join command to share
  leave, q   leave the room
`)
}
