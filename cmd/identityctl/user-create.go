package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
)

// userCreateCmd represents the user create command
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Long: `Create a user.

The user's role ID, which identity tokens carry, is account:user:login.
Logins of the form kind/id create non-user roles such as account:host:id.

Example:
  identityctl user create --account acme --login alice --email alice@example.com`,
	Run: func(cmd *cobra.Command, args []string) {
		account, _ := cmd.Flags().GetString("account")
		login, _ := cmd.Flags().GetString("login")
		displayName, _ := cmd.Flags().GetString("display-name")
		email, _ := cmd.Flags().GetString("email")

		user := &model.User{
			Account:     account,
			Login:       login,
			DisplayName: displayName,
			Email:       email,
		}
		if err := createUser(cmd.Context(), user); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create user: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	userCmd.AddCommand(userCreateCmd)
	userCreateCmd.Flags().StringP("account", "a", "", "account of the user (required)")
	userCreateCmd.Flags().StringP("login", "l", "", "login of the user (required)")
	userCreateCmd.Flags().String("display-name", "", "display name")
	userCreateCmd.Flags().String("email", "", "email address")
	_ = userCreateCmd.MarkFlagRequired("account")
	_ = userCreateCmd.MarkFlagRequired("login")
}

func createUser(ctx context.Context, user *model.User) error {
	users, err := openUsersStore()
	if err != nil {
		return err
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return err
	}
	return printUser(user)
}
