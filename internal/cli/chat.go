package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/ravan/internal/client"
)

var chatMessage string

var chatCmd = &cobra.Command{
	Use:   "chat <userId>",
	Short: "Chat with the virtual psychologist",
	Long: `Open an interactive chat session over WebSocket. Each line you type is one
turn; an empty line or EOF (Ctrl-D) ends the session.

Examples:
  ravan chat user-42
  ravan chat user-42 -m "امروز خیلی خسته‌ام"
  echo "bye" | ravan chat user-42`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "send a single message over HTTP and exit")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID := args[0]
	p := newPrinter(cmd.OutOrStdout())

	if chatMessage != "" {
		reply, err := withSpinner(p, "Thinking...", func() (*client.ChatReply, error) {
			return apiClient.Chat(ctx, userID, chatMessage)
		})
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		printReply(p, reply)
		return nil
	}

	session, err := apiClient.DialChat(ctx, userID)
	if err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	defer func() { _ = session.Close() }()

	return chatLoop(ctx, p, cmd.InOrStdin(), session)
}

type chatSender interface {
	Send(ctx context.Context, message string) (*client.ChatReply, error)
}

// chatLoop sends one turn per input line until EOF, an empty line, or a
// farewell the server recognizes.
func chatLoop(ctx context.Context, p *printer, in io.Reader, session chatSender) error {
	interactive := in == io.Reader(os.Stdin) && isTerminal(os.Stdin)
	if interactive {
		p.println(p.hint("Type a message and press Enter. An empty line ends the session."))
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			p.printf("%s ", p.title("you›"))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil
		}

		reply, err := session.Send(ctx, line)
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		printReply(p, reply)
		if reply.SessionEnding {
			p.println(p.hint("Session ended. A plan for the next session is being prepared."))
			return nil
		}
	}
}

func printReply(p *printer, reply *client.ChatReply) {
	p.printf("%s %s\n", p.success("ravan›"), reply.Reply)
}
