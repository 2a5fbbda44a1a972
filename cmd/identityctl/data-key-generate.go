package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/identity-in-go/pkg/seal"
)

// dataKeyGenerateCmd represents the data-key generate command
var dataKeyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a data key",
	Long: `
Generate a data key

Use this command to generate a new Base64-encoded 256 bit data key. Once
generated, this key should be placed into the environment of the identity
server. Rotating it invalidates every outstanding identity cookie and
bearer token.

Example:

$ export IDENTITY_DATA_KEY="$(identityctl data-key generate)"
`,
	Run: func(cmd *cobra.Command, args []string) {
		key, err := seal.GenerateKey()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Unable to generate data key:", err)
			os.Exit(1)
		}
		fmt.Print(key)
	},
}

func init() {
	dataKeyCmd.AddCommand(dataKeyGenerateCmd)
}
