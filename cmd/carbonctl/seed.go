package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/carbon-ledger/internal/auth"
	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/repository"
	"github.com/spec-kit/carbon-ledger/internal/service"
)

var seedBankAdminCmd = &cobra.Command{
	Use:   "seed-bank-admin",
	Short: "Create an approved BANK_ADMIN account",
	Long: "Bank administrators approve organizations and cannot be self-registered into an approved state. " +
		"This command creates one directly in the database.",
	RunE: runSeedBankAdmin,
}

var seedFlags struct {
	email     string
	password  string
	firstName string
	lastName  string
}

func init() {
	seedBankAdminCmd.Flags().StringVar(&seedFlags.email, "email", "", "account email (required)")
	seedBankAdminCmd.Flags().StringVar(&seedFlags.password, "password", "", "account password (required)")
	seedBankAdminCmd.Flags().StringVar(&seedFlags.firstName, "first-name", "Bank", "first name")
	seedBankAdminCmd.Flags().StringVar(&seedFlags.lastName, "last-name", "Admin", "last name")
	_ = seedBankAdminCmd.MarkFlagRequired("email")
	_ = seedBankAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(seedBankAdminCmd)
}

func runSeedBankAdmin(cmd *cobra.Command, args []string) error {
	if len(seedFlags.password) < service.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", service.MinPasswordLength)
	}

	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	pg, err := env.connect(ctx)
	if err != nil {
		return err
	}
	defer pg.Close()

	hash, err := auth.HashPassword(seedFlags.password, env.cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:               strings.ToLower(strings.TrimSpace(seedFlags.email)),
		PasswordHash:        hash,
		Role:                domain.RoleBankAdmin,
		Status:              domain.ApprovalApproved,
		Profile:             domain.Profile{FirstName: seedFlags.firstName, LastName: seedFlags.lastName},
		MonthlyDrivingQuota: domain.DefaultMonthlyDrivingQuota,
	}
	if err := repository.NewUserRepository(pg.Pool).Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("an account with email %s already exists", user.Email)
		}
		return fmt.Errorf("create bank admin: %w", err)
	}

	env.logger.Info("bank admin created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	fmt.Fprintf(cmd.OutOrStdout(), "created BANK_ADMIN %s (%s)\n", user.Email, user.ID)
	return nil
}
