package main

import (
	"fmt"

	"github.com/sensiblebit/sslchains/internal"
	"github.com/spf13/cobra"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Display the keys, requests and certificates found in a file",
	Long:  "Show what a single file contributes to a scan: each RSA key, certificate request and certificate with its virtual path, subject, key size and modulus fingerprint.",
	Example: `  sslchains inspect server.crt
  sslchains inspect bundle.p12 -p secret
  sslchains inspect server.key --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format: text or json")
	registerCompletion(inspectCmd, completionInput{"format", fixedCompletion("text", "json")})
}

func runInspect(cmd *cobra.Command, args []string) error {
	passwords, err := internal.ProcessPasswords(passwordList, passwordFile)
	if err != nil {
		return fmt.Errorf("loading passwords: %w", err)
	}

	results, err := internal.InspectFile(args[0], passwords)
	if err != nil {
		return err
	}

	output, err := internal.FormatInspectResults(results, inspectFormat)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}
