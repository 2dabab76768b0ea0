package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/ticketport/ticketport/internal/ui"
	"github.com/ticketport/ticketport/internal/validation"
)

// promptAdmin asks for the administrator's email and name with an
// interactive form. It only prompts when no email was given, stdin is a
// terminal and output is not JSON; otherwise the flag values come back
// unchanged and createAdmin reports the missing email.
func promptAdmin(email, name string, stdin *os.File) (string, string, error) {
	if strings.TrimSpace(email) != "" || jsonOutput || !ui.IsTerminal(stdin) {
		return email, name, nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Description("Administrator email (required)").
				Placeholder("admin@example.com").
				Value(&email).
				Validate(func(s string) error {
					if validation.NormalizeEmail(s) == "" {
						return fmt.Errorf("a valid email is required")
					}
					return nil
				}),

			huh.NewInput().
				Title("Name").
				Description("Display name (optional)").
				Value(&name),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return "", "", err
	}
	return email, name, nil
}
