package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/types"
	"github.com/ticketport/ticketport/internal/ui"
	"github.com/ticketport/ticketport/internal/validation"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the administrator that imports run as",
	Long: `Create the administrator that imports run as.

Without --email on an interactive terminal, a form asks for the email and
display name.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")

		email, name, err := promptAdmin(email, name, os.Stdin)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Fprintln(os.Stderr, "Administrator creation cancelled.")
				os.Exit(0)
			}
			FatalError("form error: %v", err)
		}

		user, created, err := createAdmin(rootCtx, openStore(), email, name)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(user)
			return
		}
		if created {
			fmt.Printf("%s Created administrator %s (%s)\n", ui.RenderPass(ui.IconPass), user.EmailValue(), user.ID)
		} else {
			fmt.Printf("%s Administrator %s already exists (%s)\n", ui.RenderMuted(ui.IconPass), user.EmailValue(), user.ID)
		}
	},
}

var adminTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a new bearer token for server.admin-tokens",
	Long: `Print a random token to pair with an administrator email under
server.admin-tokens, e.g.

  server:
    admin-tokens:
      <token>: admin@example.com`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		token := newAdminToken()
		if jsonOutput {
			outputJSON(map[string]string{"token": token})
			return
		}
		fmt.Println(token)
	},
}

// createAdmin creates an ADMIN user, or returns the existing one when the
// email is already an administrator. An existing non-admin is an error.
func createAdmin(ctx context.Context, s storage.Storage, email, name string) (*types.User, bool, error) {
	email = validation.NormalizeEmail(email)
	if email == "" {
		return nil, false, fmt.Errorf("--email is required")
	}

	existing, err := s.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != types.RoleAdmin {
			return nil, false, fmt.Errorf("user %s exists with role %s", email, existing.Role)
		}
		return existing, false, nil
	case !storage.IsNotFound(err):
		return nil, false, fmt.Errorf("failed to look up %s: %w", email, err)
	}

	user := &types.User{
		Email: &email,
		Role:  types.RoleAdmin,
		Name:  validation.NormalizeName(name),
	}
	if err := validation.ValidateUser(user); err != nil {
		return nil, false, err
	}
	if err := s.CreateUser(ctx, user); err != nil {
		return nil, false, fmt.Errorf("failed to create administrator: %w", err)
	}
	return user, true, nil
}

// newAdminToken returns 32 lowercase hex characters. Config keys are case
// folded, so tokens must not rely on case.
func newAdminToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func init() {
	adminCreateCmd.Flags().String("email", "", "Administrator email (prompted for on a terminal when omitted)")
	adminCreateCmd.Flags().String("name", "", "Display name")

	adminCmd.AddCommand(adminCreateCmd, adminTokenCmd)
	rootCmd.AddCommand(adminCmd)
}
