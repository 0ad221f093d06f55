package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage gt2plink configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.gt2plink.yaml.",
		Example: `  gt2plink config                                  # show all config
  gt2plink config set sample.family_id FAM1          # default family ID
  gt2plink config set manifest.path ~/gt2plink.duckdb # record every run
  gt2plink config get sample.family_id               # get a value`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}
}

func runConfigShow(w io.Writer) error {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(w, string(out))
	return nil
}

func runConfigSet(w io.Writer, key, value string) error {
	// Parse boolean-like values
	switch value {
	case "true", "yes", "on":
		viper.Set(key, true)
	case "false", "no", "off":
		viper.Set(key, false)
	default:
		viper.Set(key, value)
	}

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		var err error
		if cfgFile, err = defaultConfigPath(); err != nil {
			return err
		}
	}

	// Only keys already in the file plus the new one; viper.WriteConfigAs
	// would also persist every bound flag default.
	settings := make(map[string]any)
	for _, k := range viper.AllKeys() {
		if viper.InConfig(k) {
			setNested(settings, k, viper.Get(k))
		}
	}
	setNested(settings, key, viper.Get(key))
	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := writeConfigFile(cfgFile, out); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(w io.Writer, key string) error {
	if !viper.IsSet(key) {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(w, viper.Get(key))
	return nil
}

// setNested stores value under a dotted key, creating intermediate maps.
func setNested(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = make(map[string]any)
			m[p] = child
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
}

func writeConfigFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
