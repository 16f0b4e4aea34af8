package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ndlib/siptools/pack"
)

func newVerifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <package tar>",
		Short: "Check the signature and digests of a package",
		Long: `Check the signature of a package and the digests of the files it lists.
The signature is checked with the public half of the signing key when one is
configured. Otherwise the certificate inside the signature file is used, and
it must chain to one of the trusted certificates.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			report, err := a.verify(f)
			if err != nil {
				return err
			}

			out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			var total int64
			for _, e := range report.Entries {
				fmt.Fprintf(out, "%s\t%s\t%s\n", e.Name, humanize.Bytes(uint64(e.Size)), hex.EncodeToString(e.SHA256))
				total += e.Size
			}
			out.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "signature OK: %d of %d files signed, %s\n",
				len(report.Signed), len(report.Entries), humanize.Bytes(uint64(total)))
			return nil
		},
	}
	addTrustedCerts(cmd, &a.params)
	return cmd
}

// verify checks the package in r with the configured key, or failing that
// with the configured trusted certificates.
func (a *app) verify(r io.Reader) (*pack.Report, error) {
	signer, err := a.signer()
	if err != nil {
		return nil, err
	}
	if signer != nil {
		return pack.Verify(r, signer.PublicKey())
	}
	if a.cfg.Signing.TrustedCerts == "" {
		return nil, pack.ErrNoPublicKey
	}
	roots, err := pack.LoadCertPool(a.cfg.Signing.TrustedCerts)
	if err != nil {
		return nil, err
	}
	return pack.VerifyWithRoots(r, roots)
}
