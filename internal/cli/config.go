package cli

import (
	"fmt"
	"slices"

	"github.com/JonMunkholm/roster/internal/config"
	"github.com/JonMunkholm/roster/internal/settings"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the persisted configuration",
	}

	var reveal bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print every configuration value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeFn, err := opts.openSettings(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			values, err := store.GetAll(cmd.Context())
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			slices.Sort(keys)

			out := cmd.OutOrStdout()
			for _, k := range keys {
				v := values[k]
				if !reveal && config.IsSecret(k) {
					v = config.Mask(v)
				}
				fmt.Fprintf(out, "%s=%s\n", k, v)
			}
			return nil
		},
	}
	show.Flags().BoolVar(&reveal, "reveal", false, "print secret values in full")

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := opts.openSettings(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			v, err := store.Get(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	cmd.AddCommand(show, get)
	return cmd
}

// openSettings connects the store and returns the configuration store over
// it with a function that disconnects.
func (o *rootOptions) openSettings(cmd *cobra.Command) (*settings.Store, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cmd.Context(), &cfg.Store, nil)
	if err != nil {
		return nil, nil, err
	}
	return settings.New(store.Collection(cfg.Store.ConfigCollection)), func() { _ = store.Close(cmd.Context()) }, nil
}
