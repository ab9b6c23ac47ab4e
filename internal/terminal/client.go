// Package terminal is a line-oriented chat client on top of the session and
// chat services.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"gemchat/internal/interfaces"
	"gemchat/internal/model"
)

const helpText = `Commands:
  /login <email> <password>     sign in
  /register <email> <password>  create an account
  /reset <email>                send a password reset email
  /logout                       sign out
  /new                          start a new conversation
  /switch <id>                  open an existing conversation
  /list                         list conversations
  /help                         show this help
  /quit                         exit
Any other line is sent as a message.`

// Client reads commands and messages line by line and prints the results.
type Client struct {
	session   interfaces.SessionService
	chat      interfaces.ChatService
	out       io.Writer
	replyWait time.Duration
}

func NewClient(session interfaces.SessionService, chat interfaces.ChatService, out io.Writer) *Client {
	return &Client{session: session, chat: chat, out: out, replyWait: 5 * time.Second}
}

// Run processes lines from in until /quit, end of input or ctx is done.
func (c *Client) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, "Type /help for commands.")
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if quit := c.Execute(ctx, scanner.Text()); quit {
			return nil
		}
	}
	return scanner.Err()
}

// Execute handles one input line and reports whether the client should exit.
func (c *Client) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		c.send(ctx, line)
		return false
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(c.out, helpText)
	case "/login":
		if len(args) != 2 {
			fmt.Fprintln(c.out, "usage: /login <email> <password>")
			return false
		}
		c.report(c.session.Login(ctx, args[0], args[1]))
	case "/register":
		if len(args) != 2 {
			fmt.Fprintln(c.out, "usage: /register <email> <password>")
			return false
		}
		c.report(c.session.Register(ctx, args[0], args[1]))
	case "/reset":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "usage: /reset <email>")
			return false
		}
		c.report(c.session.SendPasswordReset(ctx, args[0]))
	case "/logout":
		c.session.Logout(ctx)
		c.report(nil)
	case "/new":
		fmt.Fprintf(c.out, "Started conversation %s\n", c.chat.StartNewConversation())
	case "/switch":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "usage: /switch <id>")
			return false
		}
		if err := c.chat.SwitchToConversation(args[0]); err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return false
		}
		fmt.Fprintf(c.out, "Switched to %s\n", args[0])
		c.printMessages(c.chat.State().Messages)
	case "/list":
		c.list()
	default:
		fmt.Fprintf(c.out, "Unknown command %s. Type /help for commands.\n", cmd)
	}
	return false
}

// report prints the session state a command left behind. Informational
// states are acknowledged once shown.
func (c *Client) report(err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	st := c.session.State()
	switch st.Status {
	case model.SessionSignedIn:
		fmt.Fprintf(c.out, "Signed in as %s\n", st.DisplayLabel)
	case model.SessionSignedOut:
		fmt.Fprintln(c.out, "Signed out")
	case model.SessionRegistered:
		fmt.Fprintln(c.out, "Account created. Sign in with /login.")
		c.session.Acknowledge()
	case model.SessionPasswordResetSent:
		fmt.Fprintf(c.out, "Password reset email sent to %s\n", st.ResetTarget)
		c.session.Acknowledge()
	case model.SessionFailed:
		fmt.Fprintf(c.out, "Error: %s\n", st.Reason)
		c.session.Acknowledge()
	default:
		fmt.Fprintf(c.out, "Session: %s\n", st.Status)
	}
}

func (c *Client) send(ctx context.Context, text string) {
	before := len(c.chat.State().Messages)
	if err := c.chat.SendMessage(ctx, text); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	c.printMessages(c.awaitReply(ctx, before).Messages)
}

// awaitReply waits until the store has delivered both the new user message
// and the assistant's answer, or replyWait runs out, and returns the last
// state seen. before is the message count from just before sending; Watch
// starts with the current state, which may still predate the send.
func (c *Client) awaitReply(ctx context.Context, before int) model.ChatUiState {
	ctx, cancel := context.WithTimeout(ctx, c.replyWait)
	defer cancel()

	var st model.ChatUiState
	for st = range c.chat.Watch(ctx) {
		if !st.Loading && len(st.Messages) >= before+2 && endsWithReply(st.Messages) {
			break
		}
	}
	return st
}

func endsWithReply(msgs []model.Message) bool {
	return len(msgs) > 0 && msgs[len(msgs)-1].Origin == model.OriginAssistant
}

func (c *Client) printMessages(msgs []model.Message) {
	for _, m := range msgs {
		who := "you"
		if m.Origin == model.OriginAssistant {
			who = "assistant"
		}
		fmt.Fprintf(c.out, "%s: %s\n", who, m.Content)
	}
}

func (c *Client) list() {
	st := c.chat.State()
	if len(st.ConversationIDs) == 0 {
		fmt.Fprintln(c.out, "No conversations yet.")
		return
	}
	for _, id := range st.ConversationIDs {
		marker := " "
		if id == st.ActiveConversationID {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s %s\n", marker, id)
	}
}
