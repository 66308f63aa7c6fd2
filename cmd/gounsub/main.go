package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tracyhatemice/gounsub/internal/config"
	"github.com/tracyhatemice/gounsub/internal/mailbox"
	"github.com/tracyhatemice/gounsub/internal/scanner"
	"github.com/tracyhatemice/gounsub/internal/visitor"
)

func main() {
	var (
		configPath string
		logLevel   string
		dryRun     bool
	)

	rootCmd := &cobra.Command{
		Use:   "gounsub",
		Short: "Scan a mailbox for unsubscribe links and visit them",
		Long: `gounsub searches a mailbox for messages that contain an unsubscribe
mechanism, extracts every unsubscribe link from their HTML bodies and issues
an HTTP GET against each link with bounded retries.

Credentials can live in the config file or in the EMAIL and PASSWORD
environment variables; a .env file is honored when present.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			logger := setupLogger(cfg.LogLevel)
			slog.SetDefault(logger)
			logger.Info("gounsub starting", "mailbox", cfg.Mailbox.Type, "host", cfg.Mailbox.GetHost())

			return run(cfg, dryRun, logger)
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "extract and print links without visiting them")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, dryRun bool, logger *slog.Logger) error {
	session, err := dialMailbox(cfg, logger)
	if err != nil {
		return fmt.Errorf("mailbox connect: %w", err)
	}

	scan := scanner.New(session, cfg.SearchQuery(), cfg.IncludeHeaderLinks, logger)
	links, err := scan.FindUnsubscribeLinks()
	if err != nil {
		return err
	}

	logger.Info("total unsubscribe links found", "count", len(links))

	if dryRun {
		for _, link := range links {
			fmt.Println(link)
		}
		return nil
	}

	policy := visitor.NewPolicy(
		cfg.Visit.GetMaxAttempts(),
		cfg.Visit.GetBackoffFactor(),
		cfg.Visit.GetTimeout(),
		cfg.Visit.GetRetryableStatuses(),
	)
	v := visitor.New(policy, cfg.Visit.GetWorkers(), logger)
	outcomes := v.Visit(links)

	var succeeded int
	for _, out := range outcomes {
		if out.Success() {
			succeeded++
		}
	}
	logger.Info("run complete", "links", len(links), "succeeded", succeeded, "failed", len(links)-succeeded)

	return nil
}

func dialMailbox(cfg *config.Config, logger *slog.Logger) (mailbox.Session, error) {
	mb := cfg.Mailbox
	switch mb.Type {
	case "imap":
		return mailbox.DialIMAP(mb.GetHost(), mb.GetPort(), mb.Username, mb.Password, mb.GetUseTLS(), mb.GetFolder(), logger)
	case "pop3":
		return mailbox.DialPOP3(mb.GetHost(), mb.GetPort(), mb.Username, mb.Password, mb.GetUseTLS(), logger)
	case "mbox":
		return mailbox.OpenMbox(mb.Path, logger)
	default:
		return nil, fmt.Errorf("unsupported mailbox type: %s", mb.Type)
	}
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
