// Package main provides the gt2plink command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ErrUsage marks errors caused by bad arguments or flags.
var ErrUsage = errors.New("usage error")

type usageError struct{ err error }

func (e *usageError) Error() string        { return e.err.Error() }
func (e *usageError) Unwrap() error        { return e.err }
func (e *usageError) Is(target error) bool { return target == ErrUsage }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// usageArgs marks positional argument errors as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteC()
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	if errors.Is(err, ErrUsage) {
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, cmd.UsageString())
		return ExitUsage
	}
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "Hint: Check that the file path is correct\n")
	}
	return ExitError
}

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gt2plink <input> <output-prefix>",
		Short: "Convert 23andMe raw data to binary PLINK format",
		Long: `Convert a 23andMe raw genotype file into a binary PLINK fileset
(<prefix>.fam, <prefix>.bim, <prefix>.bed) for a single sample.

The input may be plain text, gzip, or the zip archive 23andMe delivers.
Use '-' to read from stdin.`,
		Example: `  gt2plink genome.txt Results/sample
  gt2plink --individual-id NA12878 --sex 1 genome.zip out/na12878
  gt2plink --upload s3://my-bucket/plink genome.txt out/sample
  gt2plink inspect out/sample`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          usageArgs(cobra.ExactArgs(2)),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], args[1])
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pflags := cmd.PersistentFlags()
	pflags.StringVar(&cfgFile, "config", "", "Config file (default ~/.gt2plink.yaml)")
	pflags.String("manifest", "", "DuckDB file recording each conversion")
	_ = viper.BindPFlag("manifest.path", pflags.Lookup("manifest"))

	flags := cmd.Flags()
	flags.String("family-id", "", "Family ID written to .fam (default: individual ID)")
	flags.String("individual-id", "", "Individual ID written to .fam (default: input file name)")
	flags.String("paternal-id", "0", "Paternal ID ('0' if unknown)")
	flags.String("maternal-id", "0", "Maternal ID ('0' if unknown)")
	flags.Int("sex", 2, "Sex code: 1=male, 2=female, 0=unknown")
	flags.String("phenotype", "-9", "Phenotype value ('-9' if missing)")
	flags.Bool("permissive-chromosomes", false, "Keep any positive integer chromosome, not only 1-22 and X")
	flags.Bool("snps-only", false, "Drop I/D (indel) and other non-ACGT calls")
	flags.String("upload", "", "Upload the fileset to s3://bucket/prefix or gs://bucket/prefix")
	flags.String("metrics-file", "", "Write Prometheus metrics in textfile format to this path")
	flags.BoolP("verbose", "v", false, "Log dropped lines and other debug detail")

	for key, flag := range map[string]string{
		"sample.family_id":       "family-id",
		"sample.individual_id":   "individual-id",
		"sample.paternal_id":     "paternal-id",
		"sample.maternal_id":     "maternal-id",
		"sample.sex":             "sex",
		"sample.phenotype":       "phenotype",
		"chromosomes.permissive": "permissive-chromosomes",
		"filter.snps_only":       "snps-only",
		"upload.url":             "upload",
		"metrics.file":           "metrics-file",
		"verbose":                "verbose",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// initConfig reads the config file and GT2PLINK_* environment variables.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".gt2plink")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GT2PLINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", viper.ConfigFileUsed(), err)
	}
	return nil
}

// defaultConfigPath returns ~/.gt2plink.yaml.
func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".gt2plink.yaml"), nil
}
