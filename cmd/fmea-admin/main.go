package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "fmea-admin",
		Short:        "Operator tasks for the FMEA tracker API",
		Long:         "Run database migrations and manage accounts without going through the public API.",
		SilenceUsage: true,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}

	createUserCmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a verified account",
		Long:  "Create an account that can sign in immediately. Missing fields are asked for interactively.",
		Args:  cobra.NoArgs,
		RunE:  runCreateUser,
	}
	createUserCmd.Flags().String("name", "", "Display name")
	createUserCmd.Flags().String("email", "", "Email address")
	createUserCmd.Flags().String("role", "user", "Role (admin, user)")
	createUserCmd.Flags().Bool("password-stdin", false, "Read the password from stdin instead of prompting")

	setRoleCmd := &cobra.Command{
		Use:   "set-role <email> <role>",
		Short: "Change the role of an existing account",
		Args:  cobra.ExactArgs(2),
		RunE:  runSetRole,
	}

	rootCmd.AddCommand(migrateCmd, createUserCmd, setRoleCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
