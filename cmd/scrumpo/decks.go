package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrumpo/scrumpo/internal/deck"
)

func newDecksCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decks",
		Short: "Inspect and manage voting decks.",
	}
	cmd.AddCommand(newDecksListCmd(flags), newDecksSetCustomCmd(flags))
	return cmd
}

func newDecksListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available decks.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, d := range deck.Builtin {
				fmt.Fprintf(out, "%-22s %s\n", d.ID, strings.Join(d.Cards, " "))
			}
			if custom, ok := a.Store.CustomDeck(cmd.Context()); ok {
				fmt.Fprintf(out, "%-22s %s\n", custom.ID, strings.Join(custom.Cards, " "))
			}
			return nil
		},
	}
}

func newDecksSetCustomCmd(flags *rootFlags) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "set-custom <card>...",
		Short: "Save a custom deck from the given cards (at least two).",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			d := deck.Deck{ID: deck.CustomID, Name: name, Cards: deck.NormalizeCards(args)}
			if !deck.Usable(d) {
				return fmt.Errorf("a deck needs at least two non-empty cards")
			}
			if err := a.Store.SaveCustomDeck(cmd.Context(), d); err != nil {
				return fmt.Errorf("save custom deck: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "custom deck saved: %s\n", strings.Join(d.Cards, " "))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "deck-name", "Custom", "display name for the custom deck")
	return cmd
}
