package main

import (
	"github.com/spf13/cobra"
)

func newJoinCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "join <room-id>",
		Short: "Join an existing room.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			eng, roomID, err := a.JoinRoom(sess, args[0])
			if err != nil {
				return err
			}
			return runRoom(ctx, cmd, eng, roomID)
		},
	}
}
