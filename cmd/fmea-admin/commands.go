package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/redmonkez12/fmea-api/cmd/fmea-admin/ui"
	"github.com/redmonkez12/fmea-api/internal/auth"
	"github.com/redmonkez12/fmea-api/internal/config"
	"github.com/redmonkez12/fmea-api/internal/database"
	"github.com/redmonkez12/fmea-api/internal/logging"
	"github.com/redmonkez12/fmea-api/internal/user"
)

type userCreator interface {
	Create(ctx context.Context, u *user.User) (*user.User, error)
}

func openDatabase(migrate bool) (*database.Handle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	return database.NewHandle(cfg.Database.ConnectionString(), migrate, logger), nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	db, err := openDatabase(true)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}
	defer db.Close()

	// The first connect applies the embedded migrations
	if _, err := db.DB(cmd.Context()); err != nil {
		ui.PrintError(err.Error())
		return err
	}

	ui.PrintSuccess("Database is up to date.")
	return nil
}

func runCreateUser(cmd *cobra.Command, _ []string) error {
	in := ui.UserInput{}
	in.Name, _ = cmd.Flags().GetString("name")
	in.Email, _ = cmd.Flags().GetString("email")
	in.Role, _ = cmd.Flags().GetString("role")
	passwordStdin, _ := cmd.Flags().GetBool("password-stdin")

	if passwordStdin {
		password, err := readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}
		in.Password = password
	}

	if in.Name == "" || in.Email == "" || in.Password == "" {
		filled, err := ui.RunUserForm(in)
		if err != nil {
			return fmt.Errorf("form cancelled: %w", err)
		}
		in = filled
	}

	db, err := openDatabase(false)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}
	defer db.Close()

	u, err := createUser(cmd.Context(), user.NewRepository(db), auth.NewPasswordHasher(auth.DefaultArgon2Params), in)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}

	ui.PrintUser(u)
	ui.PrintSuccess("Account created.")
	return nil
}

func runSetRole(cmd *cobra.Command, args []string) error {
	role, err := user.ParseRole(args[1])
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}

	db, err := openDatabase(false)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}
	defer db.Close()

	u, err := user.NewRepository(db).SetRole(cmd.Context(), args[0], role)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}

	ui.PrintUser(u)
	ui.PrintSuccess("Role updated.")
	return nil
}

// createUser validates in with the public registration rules and stores a
// pre-verified account
func createUser(ctx context.Context, store userCreator, hasher *auth.PasswordHasher, in ui.UserInput) (*user.User, error) {
	cmd, err := auth.RegisterRequest{
		Intent:   auth.IntentRegister,
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		Role:     in.Role,
	}.Command()
	if err != nil {
		return nil, err
	}
	reg := cmd.(auth.FullRegistration)

	hash, err := hasher.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return store.Create(ctx, &user.User{
		Name:          reg.Name,
		Email:         reg.Email,
		PasswordHash:  hash,
		Role:          reg.Role,
		EmailVerified: true,
	})
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
