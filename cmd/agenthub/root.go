package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hupe1980/agenthub"
	"github.com/hupe1980/agenthub/config"
	"github.com/hupe1980/agenthub/logging"
)

// app holds the state shared by all commands.
type app struct {
	configPath string
	logLevel   string
	noColor    bool

	cfg    *config.Config
	zap    *zap.Logger
	logger logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "agenthub",
		Short: "agenthub - chat with tool-calling agents",
		Long: `agenthub hosts a set of tool-calling agents (chatbot, research assistant,
RAG assistant, SQL, Wikipedia, arXiv and a supervisor delegating to them).

Model credentials are read from the config file and the usual environment
variables (OPENAI_API_KEY, GROQ_API_KEY, ANTHROPIC_API_KEY, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.zap != nil {
				_ = a.zap.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "agenthub.yaml", "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable markdown rendering and colors")

	cmd.AddCommand(
		newAgentsCmd(a),
		newModelsCmd(a),
		newThreadsCmd(a),
		newChatCmd(a),
		newReplayCmd(a),
	)

	return cmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	if a.noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.zap, err = logging.NewZapLogger(level, cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logging.NewZapAdapter(a.zap)

	return nil
}

func (a *app) hub() (*agenthub.Hub, error) {
	return agenthub.New(a.cfg, func(o *agenthub.Options) { o.Logger = a.logger })
}
