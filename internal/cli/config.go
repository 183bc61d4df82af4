package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/go-shadowing/internal/config"
)

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Configuration is stored in ~/.config/go-shadowing/config.
Every setting can also come from a SHADOWING_* environment variable; the
file wins over the environment, and flags win over both.

Supported settings:
` + keyHelp(),
		Example: `  shadowing config set percentage 150
  shadowing config set output-dir ~/Music/drills
  shadowing config get threshold
  shadowing config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

// keyHelp lists every key with its environment variable.
func keyHelp() string {
	var b strings.Builder
	for _, key := range config.Keys() {
		fmt.Fprintf(&b, "  %-12s (env: %s)\n", key, config.EnvName(key))
	}
	return strings.TrimRight(b.String(), "\n")
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Durations (min-silence, min-speech, max-speech) are whole milliseconds or
Go durations such as 1.5s. For output-dir, the directory is created if it
doesn't exist.`,
		Example: `  shadowing config set min-silence 250
  shadowing config set detector ffmpeg
  shadowing config set s3-bucket my-drills`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value.

Prints the value to stdout, or nothing if not set. Falls back to the
environment variable when the file has no value.`,
		Example: `  shadowing config get output-dir`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, args[0])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List all configuration values.

Shows both values from the config file and environment variable overrides.`,
		Example: `  shadowing config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env)
		},
	}
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, key, value string) error {
	if key == config.KeyOutputDir {
		expanded := config.ExpandPath(value)
		if err := config.EnsureOutputDir(expanded); err != nil {
			return fmt.Errorf("invalid output-dir: %w", err)
		}
		value = expanded
	}

	if err := config.Save(key, value); err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// runConfigGet handles the "config get" command.
func runConfigGet(env *Env, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	value, err := config.Get(key)
	if err != nil {
		return err
	}
	if value == "" {
		value = env.Getenv(config.EnvName(key))
	}

	if value != "" {
		fmt.Fprintln(env.Stdout, value)
	}
	return nil
}

// runConfigList handles the "config list" command.
func runConfigList(env *Env) error {
	data, err := config.List()
	if err != nil {
		return err
	}

	lines := 0
	for _, key := range config.Keys() {
		if v, ok := data[key]; ok {
			fmt.Fprintf(env.Stdout, "%s=%s\n", key, v)
			lines++
			continue
		}
		if v := env.Getenv(config.EnvName(key)); v != "" {
			fmt.Fprintf(env.Stdout, "%s=%s (from env)\n", key, v)
			lines++
		}
	}

	if lines == 0 {
		fmt.Fprintln(env.Stdout, "No configuration set.")
		fmt.Fprintln(env.Stdout, "\nAvailable settings:")
		for _, key := range config.Keys() {
			fmt.Fprintf(env.Stdout, "  %s\n", key)
		}
	}
	return nil
}

// checkKey rejects keys that are not supported settings.
func checkKey(key string) error {
	if slices.Contains(config.Keys(), key) {
		return nil
	}
	return fmt.Errorf("%w %q (valid keys: %s)", config.ErrUnknownKey, key, strings.Join(config.Keys(), ", "))
}
