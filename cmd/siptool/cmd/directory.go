package cmd

import (
	"github.com/spf13/cobra"
)

func newDirectoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory <source dir> <output>",
		Short: "Build a package from every file below a directory",
		Long: `Build a package from every regular file below the source directory.
The files keep their paths relative to the source directory. The package is
written as a tar file at output, or under the key output when a storage
location is configured.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.document(a.params.build.label)
			if err != nil {
				return err
			}
			pkg, err := a.builder().FromDirectory(cmd.Context(), args[0], doc)
			if err != nil {
				return err
			}
			if err := a.addMetadata(pkg, a.params.build.metadata); err != nil {
				return err
			}
			return a.finalize(cmd.Context(), cmd, pkg, args[1])
		},
	}
	addLabel(cmd, &a.params)
	addMetadataFiles(cmd, &a.params)
	return cmd
}
