package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PabloGalante/farum-studio/internal/app/conversation"
	"github.com/PabloGalante/farum-studio/internal/app/sessions"
	"github.com/PabloGalante/farum-studio/internal/app/workspace"
	"github.com/PabloGalante/farum-studio/internal/domain"
)

const chatHelp = `Commands:
  /new              start a new session
  /sessions         list sessions
  /switch <id>      activate a session
  /context <id>     add or remove a session from the context
  /search on|off    toggle web search grounding
  /image <prompt>   generate an image
  /key <api key>    store the Gemini API key
  /quit             leave`

func NewChatCmd(v *viper.Viper) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat from the terminal",
		Long: `Start an interactive chat against the configured storage and model.

Replies are printed while they stream in. Type /help for commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ws, err := a.workspaces.Get(cmd.Context(), domain.UserID(userID))
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), ws, a.creds)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "local", "user whose sessions to open")
	return cmd
}

// keySetter stores the chat API key.
type keySetter interface {
	SetChatKey(ctx context.Context, key string) error
}

func runChat(ctx context.Context, in io.Reader, out io.Writer, ws *workspace.Workspace, keys keySetter) error {
	printInfo(out, "farum chat, session %s. Type /help for commands.", ws.Sessions.ActiveID())
	if !ws.Conversation.CanSend(ctx) {
		printInfo(out, "no API key stored yet, use /key <api key>")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		userColor.Fprint(out, "you › ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := chatCommand(ctx, out, ws, keys, line)
			if err != nil {
				printError(out, "%v", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := streamReply(ctx, out, ws, line); err != nil {
			printError(out, "%v", err)
		}
	}
}

func chatCommand(ctx context.Context, out io.Writer, ws *workspace.Workspace, keys keySetter, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(out, chatHelp)
	case "/new":
		id := ws.Sessions.CreateSession(ctx, true)
		printInfo(out, "started session %s", id)
	case "/sessions":
		renderSessions(out, ws.Sessions.Sessions(), ws.Sessions.ActiveID(), ws.Sessions.ContextIDs())
	case "/switch":
		if err := ws.Sessions.SwitchSession(domain.SessionID(arg)); err != nil {
			return false, err
		}
		printInfo(out, "switched to %s", arg)
	case "/context":
		id := domain.SessionID(arg)
		if id == ws.Sessions.ActiveID() {
			return false, fmt.Errorf("the active session is always part of the conversation")
		}
		if _, ok := ws.Sessions.Session(id); !ok {
			return false, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
		}
		if ws.Sessions.ToggleContext(id) {
			printInfo(out, "%s added to the context", id)
		} else {
			printInfo(out, "%s removed from the context", id)
		}
	case "/search":
		ws.Binder.SetWebSearch(arg == "on")
		printInfo(out, "web search %s", map[bool]string{true: "on", false: "off"}[ws.Binder.WebSearch()])
	case "/image":
		res, err := ws.Conversation.GenerateImage(ctx, conversation.ImageInput{Prompt: arg})
		if err != nil {
			return false, err
		}
		printResult(out, res.Model)
	case "/key":
		if err := keys.SetChatKey(ctx, arg); err != nil {
			return false, err
		}
		printInfo(out, "API key stored")
	default:
		return false, fmt.Errorf("unknown command %s", name)
	}
	return false, nil
}

// streamReply sends text and prints the placeholder as it grows. It follows
// the session the message went to, whatever is active meanwhile.
func streamReply(ctx context.Context, out io.Writer, ws *workspace.Workspace, text string) error {
	sessionID := ws.Sessions.ActiveID()
	before := 0
	if s, ok := ws.Sessions.Session(sessionID); ok {
		before = len(s.Messages)
	}

	type result struct {
		out *conversation.GenerationOutput
		err error
	}
	done := make(chan result, 1)
	go func() {
		o, err := ws.Conversation.SendMessage(ctx, conversation.SendMessageInput{Text: text})
		done <- result{o, err}
	}()

	printed := 0
	printDelta := func(s string) {
		if len(s) > printed {
			modelColor.Fprint(out, s[printed:])
			printed = len(s)
		}
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case res := <-done:
			if res.err != nil {
				return res.err
			}
			if res.out.Model.Error {
				if printed > 0 {
					fmt.Fprintln(out)
				}
				printError(out, "%s", res.out.Model.DisplayText())
				return nil
			}
			printDelta(res.out.Model.DisplayText())
			fmt.Fprintln(out)
			printSources(out, res.out.Model)
			return nil
		case <-ticker.C:
			if reply, ok := pendingReply(ws.Sessions, sessionID, before); ok {
				printDelta(reply)
			}
		}
	}
}

// pendingReply returns the text of the reply placeholder in sessionID once
// the user turn and the placeholder were appended after before messages.
func pendingReply(m *sessions.Manager, sessionID domain.SessionID, before int) (string, bool) {
	s, ok := m.Session(sessionID)
	if !ok || len(s.Messages) < before+2 {
		return "", false
	}
	last := s.Messages[len(s.Messages)-1]
	if last.Error {
		return "", false
	}
	return last.DisplayText(), true
}

func printResult(out io.Writer, m domain.Message) {
	if m.Error {
		printError(out, "%s", m.DisplayText())
		return
	}
	for _, d := range m.Display {
		switch d.Kind {
		case domain.DisplayText:
			modelColor.Fprintln(out, d.Text)
		default:
			dimColor.Fprintf(out, "[%s %s]\n", d.Kind, d.MIMEType)
		}
	}
}

func printSources(out io.Writer, m domain.Message) {
	for i, s := range m.Sources {
		title := s.Title
		if title == "" {
			title = s.URI
		}
		dimColor.Fprintf(out, "  [%d] %s %s\n", i+1, title, s.URI)
	}
}
