package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ndlib/siptools/client"
)

func (a *app) connection() *client.Connection {
	return &client.Connection{
		HostURL:      strings.TrimSuffix(a.params.remote.server, "/"),
		Token:        a.params.remote.token,
		PollInterval: time.Second,
	}
}

// parseFileSpecs reads arguments of the form "source" or "source=path".
func parseFileSpecs(args []string) []client.FileSpec {
	var specs []client.FileSpec
	for _, arg := range args {
		source, path, _ := strings.Cut(arg, "=")
		specs = append(specs, client.FileSpec{Source: source, Path: path})
	}
	return specs
}

func download(c *client.Connection, name, path string) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	err = c.Download(out, name)
	if err2 := out.Close(); err == nil {
		err = err2
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}

func newRemoteCmd(a *app) *cobra.Command {
	remote := &cobra.Command{
		Use:   "remote",
		Short: "Work with packages on a siptool server",
	}
	remote.PersistentFlags().StringVar(&a.params.remote.server, "server", "http://localhost:14000", "URL of the server")
	remote.PersistentFlags().StringVar(&a.params.remote.token, "token", os.Getenv("SIPTOOL_TOKEN"), "API key (default $SIPTOOL_TOKEN)")

	build := &cobra.Command{
		Use:   "build <name>",
		Short: "Ask the server to build a package",
		Long: `Ask the server to build a package from a directory or from a list of
files. Paths are relative to the source root of the server. Files are given
as "source" or "source=path in package".
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.params.remote
			if (p.directory == "") == (len(p.files) == 0) {
				return errors.New("give either --directory or --file")
			}
			c := a.connection()
			loc, err := c.Build(args[0], client.BuildRequest{
				Label:     a.params.build.label,
				Directory: p.directory,
				Files:     parseFileSpecs(p.files),
				Metadata:  a.params.build.metadata,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), loc)
			if !p.wait && p.download == "" {
				return nil
			}
			if err := c.WaitForBuild(cmd.Context(), args[0]); err != nil {
				return err
			}
			if p.download != "" {
				return download(c, args[0], p.download)
			}
			return nil
		},
	}
	addLabel(build, &a.params)
	addMetadataFiles(build, &a.params)
	build.Flags().StringVarP(&a.params.remote.directory, "directory", "d", "", "build from this directory")
	build.Flags().StringArrayVarP(&a.params.remote.files, "file", "f", nil, "add this file (may be repeated)")
	build.Flags().BoolVarP(&a.params.remote.wait, "wait", "w", false, "wait for the build to finish")
	build.Flags().StringVarP(&a.params.remote.download, "download", "o", "", "wait and then download the package to this file")

	status := &cobra.Command{
		Use:   "status <name>",
		Short: "Show the state of a build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.connection().Status(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d files\n", info.Name, info.Status, info.Files)
			for _, e := range info.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "\t%s\n", e)
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List the packages on the server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) > 0 {
				prefix = args[0]
			}
			names, err := a.connection().List(prefix)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "download <name> <file>",
		Short: "Download a package",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return download(a.connection(), args[0], args[1])
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a package from the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.connection().Delete(args[0])
		},
	}

	remote.AddCommand(build, status, list, get, del)
	return remote
}
