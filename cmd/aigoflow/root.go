package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/core/overview"
	"github.com/leofalp/aigoflow/internal/config"
	"github.com/leofalp/aigoflow/internal/utils"
	"github.com/leofalp/aigoflow/providers/ai"
)

// app carries what the persistent flags resolve to. A preset provider
// replaces the configured one.
type app struct {
	configPath string
	provider   string
	model      string
	logLevel   string
	jsonOutput bool
	usage      bool

	cfg        *config.Config
	logger     *slog.Logger
	aiProvider ai.Provider
}

func newRootCommand(provider ai.Provider) *cobra.Command {
	a := &app{aiProvider: provider}

	root := &cobra.Command{
		Use:   "aigoflow",
		Short: "LLM workflows: chains, parallel facts, refinement loops and chat",
		Long: `aigoflow runs small LLM workflows against an OpenAI-compatible endpoint
(the Hugging Face router by default), Anthropic or Gemini.

Settings are read from aigoflow.yaml, .env and AIGOFLOW_* variables; the
flags below override them.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.load,
		PersistentPostRunE: a.report,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file (default ./aigoflow.yaml when present)")
	flags.StringVar(&a.provider, "provider", "", "model provider: openai, anthropic or gemini")
	flags.StringVar(&a.model, "model", "", "model name")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn or error")
	flags.BoolVar(&a.jsonOutput, "json", false, "print results as JSON")
	flags.BoolVar(&a.usage, "usage", false, "print model calls and token usage to stderr when done")

	root.AddCommand(
		a.askCommand(),
		a.chainCommand(),
		a.factsCommand(),
		a.refineCommand(),
		a.chatCommand(),
		a.threadsCommand(),
		a.historyCommand(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if a.provider != "" && a.provider != cfg.Provider {
		// Provider-specific defaults must follow the new provider.
		cfg.Provider, cfg.Model, cfg.BaseURL, cfg.APIKeyEnv = a.provider, "", "", ""
		cfg.ApplyDefaults()
	}
	if a.model != "" {
		cfg.Model = a.model
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = cfg.Logger()
	slog.SetDefault(a.logger)
	a.logger.Debug("config loaded", "provider", cfg.Provider, "model", cfg.Model, "command", cmd.Name())

	if a.usage {
		cmd.SetContext(overview.New().ToContext(cmd.Context()))
	}
	return nil
}

func (a *app) report(cmd *cobra.Command, _ []string) error {
	o := overview.FromContext(cmd.Context())
	if o == nil {
		return nil
	}
	_, err := fmt.Fprintln(cmd.ErrOrStderr(), "usage:", o.Summary())
	return err
}

func (a *app) newClient(extra ...func(*client.ClientOptions)) (*client.Client, error) {
	if a.aiProvider != nil {
		return client.New(a.aiProvider, append(a.cfg.ClientOptions(a.logger), extra...)...)
	}
	return config.NewClient(a.cfg, a.logger, extra...)
}

// print writes value as indented JSON with --json, otherwise the text.
func (a *app) print(out io.Writer, text string, value any) error {
	if a.jsonOutput {
		text = utils.JSONToString(value, true)
	}
	_, err := fmt.Fprintln(out, text)
	return err
}
