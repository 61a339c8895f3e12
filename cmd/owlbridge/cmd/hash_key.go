package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/owlbridge/owlbridge/internal/domain/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Generate a hash for an API key",
	Long: `Generate an Argon2id hash of an API key for use in config.

The output can be used directly in the auth.api_keys[].key_hash field.
Pass --sha256 for the faster "sha256:<hex>" format.

Example:
  owlbridge hash-key "my-secret-api-key"
  # Output: $argon2id$v=19$m=48128,t=1,p=1$...

Security note: The key will appear in shell history.
Consider clearing history after use or using environment variable:
  owlbridge hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: runHashKey,
}

var hashKeySHA256 bool

func init() {
	hashKeyCmd.Flags().BoolVar(&hashKeySHA256, "sha256", false, "emit a sha256:<hex> hash instead of Argon2id")
	rootCmd.AddCommand(hashKeyCmd)
}

func runHashKey(cmd *cobra.Command, args []string) error {
	if args[0] == "" {
		return fmt.Errorf("api key must not be empty")
	}
	if hashKeySHA256 {
		fmt.Fprintln(cmd.OutOrStdout(), auth.HashKeySHA256(args[0]))
		return nil
	}
	hash, err := auth.HashKeyArgon2id(args[0])
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
