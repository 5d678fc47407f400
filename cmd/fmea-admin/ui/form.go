package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/redmonkez12/fmea-api/internal/user"
)

// UserInput holds the fields of a new account
type UserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// RunUserForm asks for the fields missing from in
func RunUserForm(in UserInput) (UserInput, error) {
	if in.Role == "" {
		in.Role = string(user.RoleUser)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&in.Name).
				Validate(required("name")),

			huh.NewInput().
				Title("Email").
				Placeholder("alice@example.com").
				Value(&in.Email).
				Validate(required("email")),

			huh.NewInput().
				Title("Password").
				Description("At least 8 characters").
				EchoMode(huh.EchoModePassword).
				Value(&in.Password).
				Validate(required("password")),

			huh.NewSelect[string]().
				Title("Role").
				Options(
					huh.NewOption("User", string(user.RoleUser)),
					huh.NewOption("Admin", string(user.RoleAdmin)),
				).
				Value(&in.Role),
		),
	).WithTheme(huh.ThemeCatppuccin())

	if err := form.Run(); err != nil {
		return UserInput{}, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	return in, nil
}

// PrintUser prints an account summary
func PrintUser(u *user.User) {
	fmt.Println(userSummary(u))
}

func userSummary(u *user.User) string {
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("Account"),
		row("ID", u.ID.String()),
		row("Name", u.Name),
		row("Email", u.Email),
		row("Role", roleBadge(u.Role)),
		row("Status", verification(u.EmailVerified)),
		"",
	)
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	fmt.Println(successStyle.Render(msg))
}

// PrintError prints an error message.
func PrintError(msg string) {
	fmt.Println(errorStyle.Render("Error: " + msg))
}
