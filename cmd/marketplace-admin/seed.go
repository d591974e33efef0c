package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/internal/api/storage"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/spf13/cobra"
)

const adminPasswordEnv = "MARKETPLACE_ADMIN_PASSWORD"

var (
	adminEmail    string
	adminName     string
	adminPassword string
	bcryptCost    int
)

func init() {
	seedAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Admin email (required)")
	seedAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "Display name")
	seedAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Admin password; falls back to $"+adminPasswordEnv)
	seedAdminCmd.Flags().IntVar(&bcryptCost, "bcrypt-cost", 0, "bcrypt cost (0 uses the library default)")

	_ = seedAdminCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(seedAdminCmd)
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create an admin account",
	Long: `Create an admin account. Admins cannot sign up through the API, so the
first one is created here.

Examples:
  MARKETPLACE_ADMIN_PASSWORD=... marketplace-admin seed-admin --email ops@example.com`,
	Args: cobra.NoArgs,
	RunE: runSeedAdmin,
}

func runSeedAdmin(cmd *cobra.Command, args []string) error {
	password := adminPassword
	if password == "" {
		password = os.Getenv(adminPasswordEnv)
	}
	if len(password) < 8 {
		return fmt.Errorf("admin password must be at least 8 characters (use --password or $%s)", adminPasswordEnv)
	}

	ctx := cmd.Context()

	dbClient, appLogger, err := connect()
	if err != nil {
		return err
	}
	defer appLogger.Close()
	defer dbClient.Close()

	hash, err := auth.HashPassword(password, bcryptCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	admin := model.User{
		ID:                uuid.NewString(),
		Email:             strings.TrimSpace(adminEmail),
		PasswordHash:      hash,
		Name:              adminName,
		Role:              domain.RoleAdmin,
		ServiceCategories: pq.StringArray{},
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := storage.NewStorage(dbClient).CreateUser(ctx, &admin); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return fmt.Errorf("an account with email %s already exists", admin.Email)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", admin.Email, admin.ID)
	return nil
}
