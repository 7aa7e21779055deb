package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"reencode/internal/config"
	"reencode/internal/deps"
	"reencode/internal/preflight"
	"reencode/internal/runlock"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigPathCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintf(out, "Set paths.library_dir in %s before queueing files.\n", filepath.Base(target))
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ctx.configPath)
			if _, err := os.Stat(ctx.configPath); err != nil {
				fmt.Fprintln(out, "(file does not exist; defaults are in effect)")
			}
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration and environment checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			encoded, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}

			out := cmd.OutOrStdout()
			style := newLineStyle(out)
			fmt.Fprintf(out, "# %s\n", ctx.configPath)
			fmt.Fprintln(out, strings.TrimRight(string(encoded), "\n"))
			fmt.Fprintln(out)

			fmt.Fprintln(out, style.header("Checks"))
			for _, result := range preflight.RunAll(cfg) {
				t := toneOK
				if !result.Passed {
					t = toneError
				}
				fmt.Fprintln(out, style.status(result.Name, t, result.Detail))
			}
			for _, status := range preflight.CheckSystemDeps(cfg) {
				fmt.Fprintln(out, dependencyStatusLine(style, status))
			}
			busy, err := runlock.InUse(cfg.EncoderLockPath())
			switch {
			case err != nil:
				fmt.Fprintln(out, style.status("Encoder", toneWarn, err.Error()))
			default:
				fmt.Fprintln(out, style.status("Encoder running", toneInfo, yesNo(busy)))
			}
			return nil
		},
	}
}

func dependencyStatusLine(style lineStyle, status deps.Status) string {
	switch {
	case status.Available:
		return style.status(status.Name, toneOK, status.Command)
	case status.Optional:
		return style.status(status.Name, toneWarn, fmt.Sprintf("%s; %s", status.Detail, strings.ToLower(status.Description)))
	default:
		return style.status(status.Name, toneError, status.Detail)
	}
}
