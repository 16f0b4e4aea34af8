package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ndlib/siptools/scraper"
)

func newScrapeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <file>",
		Short: "Characterize a file and print the scrape result",
		Long: `Characterize a file and print the scrape result as JSON. A result saved
with --output can be given to the files command, either as the
scrape_result of an entry or through --scrape-cache, so the file is not
scraped again when the package is built.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.params.scrape
			result, err := a.scraper().Scrape(cmd.Context(), args[0], scraper.Options{
				MIMEType: p.mimeType,
				Version:  p.version,
				Charset:  p.charset,
			})
			if err != nil {
				return err
			}
			if p.output != "" {
				return scraper.SaveResult(p.output, result)
			}
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&a.params.scrape.output, "output", "o", "", "save the result to this file")
	cmd.Flags().StringVar(&a.params.scrape.mimeType, "mimetype", "", "predefined MIME type")
	cmd.Flags().StringVar(&a.params.scrape.version, "format-version", "", "predefined format version")
	cmd.Flags().StringVar(&a.params.scrape.charset, "charset", "", "predefined character set of a text file")
	return cmd
}
