package main

import (
	"fmt"
	"log/slog"

	"github.com/cdmetadl/cdscore/internal/archive"
	"github.com/spf13/cobra"
)

const defaultZipName = "mysubmission.zip"

func newZipCommand() *cobra.Command {
	var (
		directory string
		zipName   string
	)

	cmd := &cobra.Command{
		Use:   "zip",
		Short: "Pack a submission directory into a zip archive",
		Long: `Pack every file below --directory into a deflate compressed zip archive.

Entry names are relative to the directory. Existing .zip files are left out,
so re-running the command never nests an old archive in the new one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := archive.ZipDir(zipName, directory)
			if err != nil {
				return err
			}
			slog.Info("wrote submission archive", "path", zipName, "files", n)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d files)\n", zipName, n) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVarP(&directory, "directory", "d", ".", "Directory to pack")
	cmd.Flags().StringVar(&zipName, "zip-name", defaultZipName, "Path of the archive to write")

	return cmd
}
