package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/database"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/app"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.AutoMigrate(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

var expireAt string

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Move every active subscription past its end date to expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		now, err := parseAt(expireAt)
		if err != nil {
			return err
		}

		svc, err := subscriptionService()
		if err != nil {
			return err
		}

		result, err := svc.ExpireStale(db.WithContext(cmd.Context()), now, "cli")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "expired %d subscription(s) at %s\n", result.Expired, result.RanAt.Format(time.RFC3339))
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <user-id|email>",
	Short: "Print a user's subscriptions, audit events and invariant check result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := resolveUserID(args[0])
		if err != nil {
			return err
		}

		svc, err := subscriptionService()
		if err != nil {
			return err
		}

		inspection, err := svc.Inspect(db.WithContext(cmd.Context()), userID, time.Now())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(inspection)
	},
}

var seedPlansCmd = &cobra.Command{
	Use:   "seed-plans",
	Short: "Insert the default plan catalogue (existing plans are kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		created, err := database.SeedPlans(db.WithContext(cmd.Context()), database.DefaultPlans)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %d plan(s)\n", created)
		return nil
	},
}

var adminName, adminEmail, adminPassword string

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin user (defaults come from the admin section of the config)",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := firstNonEmpty(adminName, cfg.Admin.Name)
		email := firstNonEmpty(adminEmail, cfg.Admin.Email)
		password := firstNonEmpty(adminPassword, cfg.Admin.Password)
		if email == "" || password == "" {
			return errors.New("admin email and password are required")
		}

		created, err := database.SeedAdmin(db.WithContext(cmd.Context()), name, email, password)
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists\n", email)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", email)
		return nil
	},
}

func init() {
	expireCmd.Flags().StringVar(&expireAt, "at", "", "evaluate expiry at this RFC3339 time instead of now")

	createAdminCmd.Flags().StringVar(&adminName, "name", "", "admin display name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password (min 8 chars)")
}

// subscriptionService собирает сервис без почты и метрик: CLI не шлет алерты
func subscriptionService() (services.SubscriptionService, error) {
	calc, err := app.Calculator(cfg)
	if err != nil {
		return nil, err
	}
	return services.NewSubscriptionService(
		repositories.NewSubscriptionRepository(),
		repositories.NewEventRepository(),
		repositories.NewUserRepository(),
		calc,
		nil,
		services.OperatorAlert{},
	), nil
}

func resolveUserID(ref string) (string, error) {
	if !strings.Contains(ref, "@") {
		return ref, nil
	}
	user, err := repositories.NewUserRepository().FindByEmail(db, strings.ToLower(ref))
	if err != nil {
		return "", fmt.Errorf("find user %s: %w", ref, err)
	}
	return user.ID, nil
}

func parseAt(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: %w", value, err)
	}
	return t, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
