package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sensiblebit/sslchains/internal"
	"github.com/sensiblebit/sslchains/internal/discover"
	"github.com/spf13/cobra"
)

var (
	logLevel     string
	logFormat    string
	configPath   string
	passwordList []string
	passwordFile string

	outputFormat     string
	oneline          bool
	onelineNoHeader  bool
	hidden           bool
	recursive        bool
	followSymlinks   bool
	crossFilesystems bool
	unlimited        bool
	maxFiles         int
	maxFileSize      int64
	catalogPath      string
	mozillaRoots     bool
	colorMode        string
)

var rootCmd = &cobra.Command{
	Use:   "sslchains [flags] [path ...]",
	Short: "Match RSA keys with requests and certificates and show who signed what",
	Long: `Scan files and directories for RSA private keys, certificate requests and
certificates. Every key is paired with the first request and all certificates
sharing its modulus, and each certificate is followed up through the
certificates that signed it until a self-signed root or an unknown issuer.

With no paths the current directory is scanned.`,
	Example: `  sslchains
  sslchains -r /etc/ssl
  sslchains -l server.key server.crt intermediate.crt
  sslchains --format json --catalog certkit.db keys/`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runScan,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML file with default flag values")
	rootCmd.PersistentFlags().StringSliceVarP(&passwordList, "passwords", "p", nil, "Comma-separated passwords for encrypted keys and containers")
	rootCmd.PersistentFlags().StringVar(&passwordFile, "password-file", "", "File containing passwords, one per line")

	flags := rootCmd.Flags()
	flags.StringVar(&outputFormat, "format", "tree", "Output format: tree, oneline, table, json or yaml")
	flags.BoolVarP(&oneline, "oneline", "l", false, "One line per key (same as --format oneline)")
	flags.BoolVarP(&onelineNoHeader, "oneline-no-header", "L", false, "One line per key without the header line")
	flags.BoolVarP(&hidden, "hidden", "H", false, "Include files and directories whose name starts with a dot")
	flags.BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	flags.BoolVarP(&followSymlinks, "follow-symlinks", "S", false, "Follow symbolic links found inside directories")
	flags.BoolVarP(&crossFilesystems, "cross-filesystems", "X", false, "Let recursion cross filesystem boundaries")
	flags.BoolVarP(&unlimited, "unlimited", "U", false, "Scan any number of files")
	flags.IntVar(&maxFiles, "max-files", discover.DefaultMaxFiles, "Maximum number of files to scan")
	flags.Int64Var(&maxFileSize, "max-file-size", internal.DefaultMaxFileSize, "Skip files larger than this many bytes")
	flags.StringVar(&catalogPath, "catalog", "", "Also read certificates and keys from a certkit SQLite catalog")
	flags.BoolVar(&mozillaRoots, "mozilla-roots", false, "Use the Mozilla root certificates as additional signers")
	flags.StringVar(&colorMode, "color", "auto", "Color tree output: auto, always or never")

	registerCompletion(rootCmd, completionInput{"format", fixedCompletion(internal.ReportFormats...)})
	registerCompletion(rootCmd, completionInput{"color", fixedCompletion("auto", "always", "never")})
	registerCompletion(rootCmd, completionInput{"catalog", fileCompletion})
	registerCompletion(rootCmd, completionInput{"log-level", fixedCompletion("debug", "info", "warn", "error")})
	registerCompletion(rootCmd, completionInput{"log-format", fixedCompletion("text", "json")})
	registerCompletion(rootCmd, completionInput{"config", fileCompletion})
	registerCompletion(rootCmd, completionInput{"password-file", fileCompletion})

	rootCmd.AddCommand(inspectCmd)
}

// setup applies the config file to flags left at their defaults and then
// configures logging, so a logLevel from the file takes effect.
func setup(cmd *cobra.Command, _ []string) error {
	if configPath != "" {
		cfg, err := internal.LoadScanConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.HasParent() {
			// Subcommands define their own --format.
			cfg.Format = nil
		}
		if err := internal.ApplyScanConfig(cmd.Flags(), cfg); err != nil {
			return err
		}
	}
	internal.SetupLogger(logLevel, logFormat)
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	passwords, err := internal.ProcessPasswords(passwordList, passwordFile)
	if err != nil {
		return fmt.Errorf("loading passwords: %w", err)
	}

	report, err := reportInput(outputFormat, oneline, onelineNoHeader)
	if err != nil {
		return err
	}
	report.Color, err = colorEnabled(colorMode, os.Stdout.Fd())
	if err != nil {
		return err
	}

	result, err := internal.Scan(internal.ScanInput{
		Args: args,
		Discover: discoverOptions(discover.Options{
			Hidden:           hidden,
			Recursive:        recursive,
			FollowSymlinks:   followSymlinks,
			CrossFilesystems: crossFilesystems,
			MaxFiles:         maxFiles,
		}, unlimited),
		Passwords:    passwords,
		MaxFileSize:  maxFileSize,
		CatalogPath:  catalogPath,
		MozillaRoots: mozillaRoots,
	})
	if err != nil {
		return err
	}

	output, err := internal.FormatChains(result.Chains, report)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}

// reportInput resolves the output format. The oneline shorthands override
// --format.
func reportInput(format string, oneline, noHeader bool) (internal.ReportInput, error) {
	if oneline || noHeader {
		format = "oneline"
	}
	if !slices.Contains(internal.ReportFormats, format) {
		return internal.ReportInput{}, fmt.Errorf("unsupported output format %q", format)
	}
	return internal.ReportInput{Format: format, NoHeader: noHeader}, nil
}

// colorEnabled decides whether to color output written to fd.
func colorEnabled(mode string, fd uintptr) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		return !color.NoColor && (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)), nil
	default:
		return false, fmt.Errorf("invalid --color value %q (use auto, always or never)", mode)
	}
}

func discoverOptions(opts discover.Options, unlimited bool) discover.Options {
	if unlimited {
		opts.MaxFiles = 0
	}
	return opts
}
