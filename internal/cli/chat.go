package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/hh6422123-cyber/Eak/internal/notifier"
	"github.com/hh6422123-cyber/Eak/internal/roomstore"
)

const quitCommand = "/quit"

func newChatCommand(r *runtime) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "chat <room-id>",
		Short: "Join a room: print new messages as they arrive and send each input line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(user) == "" {
				return errors.New("--user is required")
			}

			application, closeApp, err := r.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp()

			s := &chatSession{
				rooms:  application.Store(),
				roomID: args[0],
				user:   user,
				out:    cmd.OutOrStdout(),
				seen:   make(map[string]struct{}),
			}
			return s.run(cmd.Context(), application.Notifier(), cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "display name")
	return cmd
}

// chatSession is one terminal view of a room.
type chatSession struct {
	rooms  *roomstore.Store
	roomID string
	user   string
	out    io.Writer

	mu   sync.Mutex
	seen map[string]struct{}
}

func (s *chatSession) run(ctx context.Context, n *notifier.Notifier, in io.Reader) error {
	ok, err := s.rooms.RoomExists(ctx, s.roomID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("room %s not found", s.roomID)
	}

	fmt.Fprintf(s.out, "Joined room %s as %s\n", s.roomID, s.user)
	fmt.Fprintf(s.out, "Type messages and press Enter to send. %s or Ctrl+D to exit.\n", quitCommand)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := n.Subscribe(ctx, s.roomID, s.show)
	err = s.inputLoop(ctx, in)
	sub.Unsubscribe()

	// Show what arrived between the last delivery and leaving.
	s.show(s.rooms.Messages(context.WithoutCancel(ctx), s.roomID))
	return err
}

// show prints the messages not yet printed, in delivery order.
func (s *chatSession) show(messages []roomstore.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range messages {
		if _, ok := s.seen[m.ID]; ok {
			continue
		}
		s.seen[m.ID] = struct{}{}
		printMessage(s.out, m)
	}
}

func (s *chatSession) inputLoop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			// The line is sent as typed; trimming only decides skip and quit.
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if trimmed == quitCommand {
				return nil
			}
			if err := s.rooms.SendMessage(ctx, s.roomID, s.user, line); err != nil {
				return err
			}
		}
	}
}
