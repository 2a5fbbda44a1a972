package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/identity-in-go/pkg/db"
	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
	gormstore "github.com/doodlesbykumbi/identity-in-go/pkg/server/store/gorm"
)

// userCmd represents the user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	Long:  `Create and inspect the users identities resolve to.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'user' requires a subcommand (create, show)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
}

func openUsersStore() (*gormstore.UsersStore, error) {
	database, err := db.Connect(db.Config{})
	if err != nil {
		return nil, err
	}
	return gormstore.NewUsersStore(database), nil
}

func printUser(user *model.User) error {
	out, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
