package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/oraculum/oraculum/internal/config"
	"github.com/oraculum/oraculum/internal/logger"
	"github.com/oraculum/oraculum/pkg/chat"
	"github.com/oraculum/oraculum/pkg/completion"
	"github.com/oraculum/oraculum/pkg/conversation"
	"github.com/oraculum/oraculum/pkg/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Oraculum API server",
	Long: `Start the Oraculum API server. The process refuses to start unless
both the inbound app key and the completion provider credential are
configured.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Fail fast before accepting traffic
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()

	store := conversation.NewStore(cfg.Chat.SystemPrompt)

	sweeper := conversation.NewSweeper(store, cfg.IdleTimeout(), cfg.SweepInterval())
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	gateway, err := completion.New(cfg.AI.Provider, cfg.AI.APIKey, completion.Options{
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Timeout:     cfg.AITimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create completion gateway: %w", err)
	}

	manager, err := chat.NewManager(store, gateway, chat.Options{
		MaxHistory:    cfg.Chat.MaxHistory,
		MaxMessageLen: cfg.Chat.MaxMessageLength,
	})
	if err != nil {
		return fmt.Errorf("failed to create chat manager: %w", err)
	}

	server, err := httpapi.NewServer(httpapi.ServerOptions{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		AppKey:  cfg.Auth.AppKey,
		Version: version,
	}, manager, store, lg.GetZerolog())
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			_ = sweeper.Stop()
			return err
		}
	}

	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop API server")
	}
	if err := sweeper.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop sweeper")
	}

	return nil
}
