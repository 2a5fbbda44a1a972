package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// userShowCmd represents the user show command
var userShowCmd = &cobra.Command{
	Use:   "show <role-id>",
	Short: "Show a user",
	Long: `Show the user with the given role ID.

Example:
  identityctl user show acme:user:alice`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		users, err := openUsersStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		user, err := users.FetchUser(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to fetch user %s: %v\n", args[0], err)
			os.Exit(1)
		}
		_ = printUser(user)
	},
}

func init() {
	userCmd.AddCommand(userShowCmd)
}
