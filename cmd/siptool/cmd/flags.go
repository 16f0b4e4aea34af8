package cmd

import (
	"github.com/spf13/cobra"
)

type paramsT struct {
	root struct {
		configFile  string
		logLevel    string
		profile     string
		contractID  string
		creatorName string
		creatorType string
		keyFile     string
		location    string
		workers     int
	}
	build struct {
		label       string
		metadata    []string
		scrapeCache string
	}
	scrape struct {
		output   string
		mimeType string
		version  string
		charset  string
	}
	verify struct {
		trustedCerts string
	}
	remote struct {
		server    string
		token     string
		directory string
		files     []string
		wait      bool
		download  string
	}
}

func addConfigFile(cmd *cobra.Command, p *paramsT) string {
	const flagName = "config"
	cmd.PersistentFlags().StringVarP(&p.root.configFile, flagName, "c", "",
		"TOML configuration file")
	return flagName
}

func addLogLevel(cmd *cobra.Command, p *paramsT) string {
	const flagName = "log-level"
	cmd.PersistentFlags().StringVar(&p.root.logLevel, flagName, "",
		"one of debug, info, warn, error or none")
	return flagName
}

func addMETSHeader(cmd *cobra.Command, p *paramsT) {
	cmd.PersistentFlags().StringVar(&p.root.profile, "profile", "",
		"METS profile, 'cultural-heritage' or 'research-data'")
	cmd.PersistentFlags().StringVar(&p.root.contractID, "contract-id", "",
		"contract identifier written into the manifest")
	cmd.PersistentFlags().StringVar(&p.root.creatorName, "creator-name", "",
		"name of the organization or person creating the package")
	cmd.PersistentFlags().StringVar(&p.root.creatorType, "creator-type", "",
		"ORGANIZATION, INDIVIDUAL or OTHER")
}

func addKeyFile(cmd *cobra.Command, p *paramsT) string {
	const flagName = "key"
	cmd.PersistentFlags().StringVarP(&p.root.keyFile, flagName, "k", "",
		"PEM file with the RSA signing key")
	return flagName
}

func addTrustedCerts(cmd *cobra.Command, p *paramsT) string {
	const flagName = "trusted-certs"
	cmd.Flags().StringVar(&p.verify.trustedCerts, flagName, "",
		"PEM file of certificates the signature certificate must chain to")
	return flagName
}

func addLocation(cmd *cobra.Command, p *paramsT) string {
	const flagName = "location"
	cmd.PersistentFlags().StringVar(&p.root.location, flagName, "",
		"store packages here (a directory or s3://host/bucket/prefix) instead of at the output path")
	return flagName
}

func addWorkers(cmd *cobra.Command, p *paramsT) string {
	const flagName = "workers"
	cmd.PersistentFlags().IntVarP(&p.root.workers, flagName, "j", 0,
		"number of files characterized at once")
	return flagName
}

func addLabel(cmd *cobra.Command, p *paramsT) string {
	const flagName = "label"
	cmd.Flags().StringVar(&p.build.label, flagName, "", "label of the package")
	return flagName
}

func addMetadataFiles(cmd *cobra.Command, p *paramsT) string {
	const flagName = "metadata"
	cmd.Flags().StringArrayVarP(&p.build.metadata, flagName, "m", nil,
		"descriptive XML record to add to the package (may be repeated)")
	return flagName
}

func addScrapeCache(cmd *cobra.Command, p *paramsT) string {
	const flagName = "scrape-cache"
	cmd.Flags().StringVar(&p.build.scrapeCache, flagName, "",
		"directory of saved scrape results, looked up as <dir>/<source>.json")
	return flagName
}
