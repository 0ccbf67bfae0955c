package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCreateCmd(flags *rootFlags) *cobra.Command {
	var deckID string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room and join it.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			sess, err := a.ResolveSession(ctx, flags.name)
			if err != nil {
				return err
			}
			d, err := a.ResolveCreateDeck(ctx, deckID)
			if err != nil {
				return err
			}

			eng, roomID := a.CreateRoom(sess, d)
			fmt.Fprintf(cmd.OutOrStdout(), "room created: %s\n", roomID)
			fmt.Fprintf(cmd.OutOrStdout(), "others join with: scrumpo join %s\n\n", roomID)

			return runRoom(ctx, cmd, eng, roomID)
		},
	}

	cmd.Flags().StringVarP(&deckID, "deck", "d", "", `deck id for the new room ("custom" for your saved deck; see decks list)`)
	return cmd
}
