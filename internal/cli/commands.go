package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hh6422123-cyber/Eak/internal/roomstore"
)

func newServeCommand(r *runtime) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				r.cfg.Addr = addr
			}
			application, _, err := r.open(cmd.Context())
			if err != nil {
				return err
			}

			r.logger.Info().Str("addr", r.cfg.Addr).Msg("starting roomchat server")
			if err := application.Run(cmd.Context()); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			r.logger.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	return cmd
}

func newCreateCommand(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "create [room-id]",
		Short: "Create a room, picking a random id when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, closeApp, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp()
			rooms := application.Store()

			var (
				roomID string
				res    roomstore.CreateResult
			)
			if len(args) == 1 {
				roomID = args[0]
				res, err = rooms.CreateRoom(cmd.Context(), roomID)
			} else {
				roomID, res, err = rooms.CreateRandomRoom(cmd.Context())
			}
			if err != nil {
				return err
			}

			switch res {
			case roomstore.CreateCollision:
				return fmt.Errorf("room %s already exists", roomID)
			case roomstore.CreateAbandoned:
				return fmt.Errorf("room %s could not be saved", roomID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), roomID)
			return nil
		},
	}
}

func newExistsCommand(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <room-id>",
		Short: "Report whether a room exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, closeApp, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp()

			ok, err := application.Store().RoomExists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

func newSendCommand(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "send <room-id> <username> <text...>",
		Short: "Send one message to a room",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, closeApp, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp()
			rooms := application.Store()

			roomID := args[0]
			ok, err := rooms.RoomExists(cmd.Context(), roomID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("room %s not found", roomID)
			}
			return rooms.SendMessage(cmd.Context(), roomID, args[1], strings.Join(args[2:], " "))
		},
	}
}

func newMessagesCommand(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "messages <room-id>",
		Short: "Print a room's messages, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, closeApp, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp()

			for _, m := range application.Store().Messages(cmd.Context(), args[0]) {
				printMessage(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

func printMessage(w io.Writer, m roomstore.Message) {
	ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
	fmt.Fprintf(w, "[%s] %s: %s\n", ts, m.Username, m.Text)
}
