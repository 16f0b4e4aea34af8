package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ndlib/siptools/mets"
	"github.com/ndlib/siptools/server"
	"github.com/ndlib/siptools/store"
)

// newServer makes the package building service described by the
// configuration.
func (a *app) newServer() (*server.RESTServer, error) {
	output, err := store.ParseLocation(a.cfg.Output.Location)
	if err != nil {
		return nil, err
	}
	if a.cfg.Output.Location == "" {
		a.log.Warn("no output location given, packages are kept in memory")
	}
	signer, err := a.signer()
	if err != nil {
		return nil, err
	}
	if _, err := a.document(""); err != nil {
		return nil, err
	}
	s := &server.RESTServer{
		Address:    a.cfg.Server.Address,
		Output:     output,
		SourceRoot: a.cfg.Server.SourceRoot,
		Scraper:    a.scraper(),
		Signer:     signer,
		NewDocument: func() *mets.Document {
			doc, _ := a.document("")
			return doc
		},
		Workers:         a.cfg.Scraper.Workers,
		MaxBuilds:       a.cfg.Server.MaxBuilds,
		Clock:           a.clock,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		Log:             a.log,
	}
	if a.cfg.Server.TokenFile != "" {
		s.Validator, err = server.NewListDecoderFile(a.cfg.Server.TokenFile)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the package building service",
		Long: `Run an HTTP service which builds packages from files below the
configured source root and keeps them in the configured output location.
The service stops on SIGINT or SIGTERM, after the running builds are
canceled.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newServer()
			if err != nil {
				return err
			}
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sig)
			go func() {
				v, ok := <-sig
				if !ok {
					return
				}
				a.log.Info("stopping", zap.Stringer("signal", v))
				if err := s.Stop(); err != nil {
					a.log.Error("stop", zap.Error(err))
				}
			}()
			return s.Run()
		},
	}
}
