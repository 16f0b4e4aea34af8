// Package cmd holds the siptool commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/facebookgo/clock"
	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ndlib/siptools/config"
	"github.com/ndlib/siptools/logging"
	"github.com/ndlib/siptools/mets"
	"github.com/ndlib/siptools/pack"
	"github.com/ndlib/siptools/scraper"
	"github.com/ndlib/siptools/sip"
	"github.com/ndlib/siptools/store"
)

// app is the state shared by the commands of one invocation.
type app struct {
	params paramsT
	cfg    *config.Config
	log    *zap.Logger
	clock  clock.Clock
}

// NewRootCommand returns the siptool command tree.
func NewRootCommand() *cobra.Command {
	a := &app{clock: clock.New()}
	root := &cobra.Command{
		Use:   "siptool",
		Short: "Build, sign and check submission information packages",
		Long: `siptool builds submission information packages (SIPs) from files on
disk. Each package is a tar file holding a METS manifest, a signature and
the files themselves. Packages can be built locally or by a siptool server.
`,
		Version:           sip.Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	addConfigFile(root, &a.params)
	addLogLevel(root, &a.params)
	addMETSHeader(root, &a.params)
	addKeyFile(root, &a.params)
	addLocation(root, &a.params)
	addWorkers(root, &a.params)

	root.AddCommand(
		newDirectoryCmd(a),
		newFilesCmd(a),
		newScrapeCmd(a),
		newVerifyCmd(a),
		newServeCmd(a),
		newRemoteCmd(a),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		if raven.URL() != "" {
			raven.CaptureErrorAndWait(err, map[string]string{"command": "siptool"})
		}
		os.Exit(1)
	}
}

// setup loads the configuration, applies the flags given on the command
// line over it and starts logging.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.params.root.configFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	overrides := []struct {
		flag  string
		dst   *string
		value string
	}{
		{"log-level", &cfg.Log.Level, a.params.root.logLevel},
		{"profile", &cfg.METS.Profile, a.params.root.profile},
		{"contract-id", &cfg.METS.ContractID, a.params.root.contractID},
		{"creator-name", &cfg.METS.CreatorName, a.params.root.creatorName},
		{"creator-type", &cfg.METS.CreatorType, a.params.root.creatorType},
		{"key", &cfg.Signing.KeyFile, a.params.root.keyFile},
		{"trusted-certs", &cfg.Signing.TrustedCerts, a.params.verify.trustedCerts},
		{"location", &cfg.Output.Location, a.params.root.location},
	}
	for _, o := range overrides {
		if flags.Changed(o.flag) {
			*o.dst = o.value
		}
	}
	if flags.Changed("workers") {
		cfg.Scraper.Workers = a.params.root.workers
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	a.cfg = cfg

	a.log, err = logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	if cfg.Sentry.DSN != "" {
		if err := raven.SetDSN(cfg.Sentry.DSN); err != nil {
			return errors.Wrap(err, "sentry")
		}
		raven.SetRelease(sip.Version)
	}
	return nil
}

// scraper returns the scraper selected by the configuration.
func (a *app) scraper() scraper.Scraper {
	var s scraper.Scraper
	if a.cfg.Scraper.Command != "" {
		s = &scraper.Command{Path: a.cfg.Scraper.Command, Args: a.cfg.Scraper.Args, Log: a.log}
	} else {
		s = scraper.NewNative(a.log)
	}
	if a.cfg.Scraper.Cache {
		s = scraper.NewCache(s)
	}
	return s
}

func (a *app) builder() *sip.Builder {
	run := sip.NewRun(a.clock)
	return &sip.Builder{
		Run:       run,
		Generator: sip.NewGenerator(a.scraper(), run, a.log),
		Workers:   a.cfg.Scraper.Workers,
		Log:       a.log,
	}
}

func (a *app) document(label string) (*mets.Document, error) {
	profile, err := mets.ParseProfile(a.cfg.METS.Profile)
	if err != nil {
		return nil, err
	}
	doc := mets.NewDocument(profile, a.cfg.METS.ContractID, a.cfg.METS.CreatorName, a.cfg.METS.CreatorType)
	doc.Label = label
	return doc, nil
}

// signer loads the signing key. Without a key file it returns nil and
// finalizing reports the missing key.
func (a *app) signer() (*pack.Signer, error) {
	if a.cfg.Signing.KeyFile == "" {
		return nil, nil
	}
	return pack.LoadSigner(a.cfg.Signing.KeyFile)
}

// addMetadata imports each descriptive record and attaches it to the root
// of the package.
func (a *app) addMetadata(pkg *sip.SIP, paths []string) error {
	for _, p := range paths {
		md, err := mets.ImportMetadataFile(p)
		if err != nil {
			return err
		}
		if err := pkg.AddMetadata(md); err != nil {
			return err
		}
	}
	return nil
}

// finalize writes pkg to output. With a storage location configured the
// output is the key in that store, otherwise it is a file path.
func (a *app) finalize(ctx context.Context, cmd *cobra.Command, pkg *sip.SIP, output string) error {
	signer, err := a.signer()
	if err != nil {
		return err
	}
	if a.cfg.Output.Location == "" {
		if err := pkg.FinalizeToPath(ctx, output, signer); err != nil {
			return err
		}
		if fi, err := os.Stat(output); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files, %s\n", output, len(pkg.Files()), humanize.Bytes(uint64(fi.Size())))
		}
		return nil
	}
	dst, err := store.ParseLocation(a.cfg.Output.Location)
	if err != nil {
		return err
	}
	if err := pkg.Finalize(ctx, dst, output, signer); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s in %s: %d files\n", output, a.cfg.Output.Location, len(pkg.Files()))
	return nil
}
