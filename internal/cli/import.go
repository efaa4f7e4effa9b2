package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/spf13/cobra"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import students from an .xlsx or .csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !core.SupportedFile(path) {
				return fmt.Errorf("%w: %s", core.ErrUnsupportedFile, path)
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := cmd.Context()
			store, err := openStore(ctx, &cfg.Store, nil)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			svc := core.NewService(store, core.ServiceConfig{
				StudentsCollection:   cfg.Store.StudentsCollection,
				MaxConcurrentImports: 1,
			})
			res, err := svc.Import(ctx, filepath.Base(path), f)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Successfully uploaded %d students (%d rows skipped)\n", res.Created, res.Skipped)
			return nil
		},
	}
}
