package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PabloGalante/farum-studio/internal/app/sessions"
	"github.com/PabloGalante/farum-studio/internal/domain"
)

func NewSessionsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored sessions",
	}

	cmd.AddCommand(newSessionsListCmd(v))
	cmd.AddCommand(newSessionsDeleteCmd(v))
	return cmd
}

func newSessionsListCmd(v *viper.Viper) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List a user's sessions, newest first",
		Args:    cobra.NoArgs,
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

			// Load does not write, so listing never seeds storage.
			store := sessions.NewStore(a.kv, sessions.NewClock(nil))
			list, active, _ := store.Load(cmd.Context(), domain.UserID(userID))
			renderSessions(cmd.OutOrStdout(), list, active, nil)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "local", "owner of the sessions")
	return cmd
}

func newSessionsDeleteCmd(v *viper.Viper) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
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
			if err := ws.Sessions.DeleteSession(cmd.Context(), domain.SessionID(args[0])); err != nil {
				return err
			}
			printInfo(cmd.OutOrStdout(), "deleted %s", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "local", "owner of the session")
	return cmd
}

func renderSessions(out io.Writer, list []*domain.Session, active domain.SessionID, context []domain.SessionID) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"", "ID", "Title", "Messages", "Created"})

	for _, s := range list {
		marker := ""
		switch {
		case s.ID == active:
			marker = "*"
		case slices.Contains(context, s.ID):
			marker = "+"
		}
		t.AppendRow(table.Row{
			marker,
			s.ID,
			s.Title,
			len(s.Messages),
			domain.ToTime(s.CreatedAt).Format("2006-01-02 15:04"),
		})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d sessions", len(list)), "", ""})
	t.Render()
}
