/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/familyzen/internal/auth"
	"github.com/friendsincode/familyzen/internal/db"
	"github.com/friendsincode/familyzen/internal/models"
)

type userCreateOptions struct {
	email    string
	password string
	name     string
	role     string
	familyID int64
}

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	opts := &userCreateOptions{}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account directly in the database",
		Long: `Create an account without going through the HTTP API.

This is the only way to create an admin account.

Examples:
  familyzen user create --email parent@example.com --password s3cretpass --name "Alex"
  familyzen user create --email ops@example.com --password s3cretpass --role admin
`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(cmd, opts)
		},
	}
	createCmd.Flags().StringVar(&opts.email, "email", "", "Login email")
	createCmd.Flags().StringVar(&opts.password, "password", "", "Password")
	createCmd.Flags().StringVar(&opts.name, "name", "", "Display name")
	createCmd.Flags().StringVar(&opts.role, "role", string(models.RoleParent), "Role: admin, parent or child")
	createCmd.Flags().Int64Var(&opts.familyID, "family", 0, "Family the account belongs to")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")

	userCmd.AddCommand(createCmd)
	return userCmd
}

func runUserCreate(cmd *cobra.Command, opts *userCreateOptions) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	user, err := auth.RegisterUser(database, auth.Registration{
		Email:       opts.email,
		Password:    opts.password,
		DisplayName: opts.name,
		Role:        models.NormalizeRole(models.RoleName(opts.role)),
		FamilyID:    opts.familyID,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	logger.Info().Str("user_id", user.ID).Str("email", user.Email).Str("role", string(user.Role)).Msg("user created")
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", user.Email, user.Role, user.ID)
	return nil
}
