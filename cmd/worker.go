/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tomymiron/ETH-Global/config"
	"github.com/tomymiron/ETH-Global/internal/logging"
	"github.com/tomymiron/ETH-Global/internal/mail"
	"github.com/tomymiron/ETH-Global/internal/mq"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Delivers queued verification and recovery mail",
	Long: `Consumes the mail.outbound queue and sends each message over SMTP.
Requires MQ_BACKEND to be set. Usage:

	previate worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		logger, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		queue, err := mq.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open queue: %w", err)
		}
		if queue == nil {
			return errors.New("worker requires MQ_BACKEND")
		}
		defer func() { _ = queue.Close() }()

		logger.Info("mail worker started", zap.String("backend", cfg.MQ.Backend))
		err = mail.Consume(cmd.Context(), queue, mail.NewSender(cfg.Mail), logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consume mail: %w", err)
		}
		logger.Info("mail worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
