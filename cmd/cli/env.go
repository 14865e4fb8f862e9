package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"inbox-triage/pkg/config"
	"inbox-triage/pkg/credential"

	"github.com/spf13/cobra"
)

func newValidateEnvCommand(a *app) *cobra.Command {
	var (
		envFile  string
		required []string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "validate_env",
		Short: "Check a dotenv file before deployment",
		Long: `Parse a dotenv file and report malformed lines, duplicate keys, missing
required keys and values that still look like template placeholders. Exits
non-zero when anything is wrong.

Examples:
  inbox-triage validate_env --env-file .env
  inbox-triage validate_env --env-file deploy/.env --require DATABASE_URL --require SOP_PAGE_ID`,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := config.ValidateEnvFile(envFile, required)
			if err != nil {
				return err
			}
			if err := emit(cmd.OutOrStdout(), a.outputPath("validate_env", output), report); err != nil {
				return err
			}
			if !report.OK {
				return fmt.Errorf("%w: %s", ErrCheckFailed, envFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Dotenv file to check")
	cmd.Flags().StringArrayVar(&required, "require", []string{"DATABASE_URL", "SOP_PAGE_ID", "TRIAGE_MAILBOXES"}, "Key that must be present and non-empty (repeatable)")
	cmd.Flags().StringVar(&output, "output", "", "Result file (defaults to <OUTPUT_DIR>/validate_env.json)")
	return cmd
}

// StoreResult is the store_credential output. The secret is never echoed.
type StoreResult struct {
	Key       string `json:"key"`
	Reference string `json:"reference"`
	Stored    bool   `json:"stored"`
}

func newStoreCredentialCommand(a *app) *cobra.Command {
	var key, output string

	cmd := &cobra.Command{
		Use:   "store_credential",
		Short: "Save a secret read from stdin in the system keyring",
		Long: `Save a secret in the system keyring so configuration can refer to it as
keyring:<key>. The secret is read from the first line of stdin.

Examples:
  echo "$REFRESH_TOKEN" | inbox-triage store_credential --key gmail/sales@example.com
  echo "$IMAP_PASSWORD" | inbox-triage store_credential --key imap/ops@example.com`,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := credential.NewResolver().Store(key, secret); err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), a.outputPath("store_credential", output), StoreResult{
				Key:       key,
				Reference: "keyring:" + key,
				Stored:    true,
			})
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Keyring key, e.g. gmail/<address> (required)")
	cmd.Flags().StringVar(&output, "output", "", "Result file (defaults to <OUTPUT_DIR>/store_credential.json)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return "", fmt.Errorf("read secret: stdin is empty")
	}
	return secret, nil
}
