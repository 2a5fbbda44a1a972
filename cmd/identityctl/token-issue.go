package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
)

// tokenIssueCmd represents the token issue command
var tokenIssueCmd = &cobra.Command{
	Use:   "issue <role-id>",
	Short: "Issue an identity token for a role",
	Long: `Issue an identity token for a role in the form the configured identity
policy reads it:

  cookie   the sealed value of the identity cookie
  bearer   a signed JWT for the Authorization header
  session  the ID of a new server-side session

Example:
  curl -H "Authorization: Bearer $(identityctl token issue acme:user:alice)" localhost:8000/whoami`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		token, err := issueToken(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(token)
	},
}

func init() {
	tokenCmd.AddCommand(tokenIssueCmd)
}

func issueToken(ctx context.Context, roleID string) (string, error) {
	if _, _, err := model.ParseRoleID(roleID); err != nil {
		return "", fmt.Errorf("%w: %s", err, roleID)
	}

	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}

	p, closePolicy, err := newPolicy(cfg)
	if err != nil {
		return "", err
	}
	defer closePolicy()

	return p.Issue(ctx, roleID)
}
