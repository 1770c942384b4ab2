package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PabloGalante/farum-studio/internal/config"
	"github.com/PabloGalante/farum-studio/internal/observability"
)

const version = "0.2.0"

// NewRootCmd creates the farum command. Every persistent flag is bound to
// the matching config key, so flags win over FARUM_* env vars.
func NewRootCmd() *cobra.Command {
	v := config.New()

	cmd := &cobra.Command{
		Use:     "farum",
		Short:   "Multi-session Gemini chat assistant",
		Version: version,
		Long: `farum keeps a collection of chat sessions per user, lets you pull other
sessions into the conversation as context and talks to Gemini for text,
images, video and speech.

Available subcommands:
  serve       Run the HTTP API
  chat        Chat from the terminal
  sessions    Inspect stored sessions`,
		SilenceUsage: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.PersistentFlags()
	flags.String("mode", "local", "local or gcp")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("storage-backend", config.StorageMemory, "memory, file, sqlite or firestore")
	flags.String("storage-path", ".farum", "directory used by the file and sqlite backends")
	flags.String("gcp-project", "", "Google Cloud project for firestore and Vertex AI")
	flags.Bool("use-mock-llm", false, "answer with the offline mock instead of Gemini")
	bindFlags(v, cmd, map[string]string{
		"mode":            "mode",
		"log_level":       "log-level",
		"storage_backend": "storage-backend",
		"storage_path":    "storage-path",
		"gcp_project":     "gcp-project",
		"use_mock_llm":    "use-mock-llm",
	})

	cmd.AddCommand(NewServeCmd(v))
	cmd.AddCommand(NewChatCmd(v))
	cmd.AddCommand(NewSessionsCmd(v))

	return cmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		f := cmd.PersistentFlags().Lookup(flag)
		if f == nil {
			f = cmd.Flags().Lookup(flag)
		}
		_ = v.BindPFlag(key, f)
	}
}

func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	observability.SetLevel(cfg.LogLevel)
	return cfg, nil
}
