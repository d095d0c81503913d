package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Imports image files into the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(); closeErr != nil {
				logger.Error("Could not close stores", "error", closeErr.Error())
			}
		}()

		pipeline := a.pipeline(a.catalog())

		var errs []error
		for _, path := range args {
			file, err := os.Open(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			photo, err := pipeline.Ingest(cmd.Context(), filepath.Base(path), file)
			_ = file.Close()
			if err != nil {
				logger.Error("Could not ingest file", "path", path, "error", err.Error())
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), photo.ID)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
