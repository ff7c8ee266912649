package cli

import (
	"fmt"

	"github.com/felixgeelhaar/haven/internal/credential"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stored settings and credentials",
	}
	cmd.AddCommand(newConfigSetCmd(opts), newConfigGetCmd(opts), newConfigShowCmd(opts))
	return cmd
}

func newConfigSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Store a value; keys ending in api_key, token or secret are encrypted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			db, vault, err := openVault(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := vault.Set(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("failed to set config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved: %s\n", args[0])
			return nil
		},
	}
}

func newConfigGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print a stored value with secrets masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			db, vault, err := openVault(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			val, err := vault.Display(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if val == "" {
				val = "(not set)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), val)
			return nil
		},
	}
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.Provider.APIKey != "" {
				shown.Provider.APIKey = credential.MaskSecret(shown.Provider.APIKey)
			}
			out, err := yaml.Marshal(&shown)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
