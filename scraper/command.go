package scraper

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Command scrapes by running an external program. The program is given
// the options as flags followed by the path, and must print a result in
// the layout read by ParseResult on its standard output.
type Command struct {
	Path string
	Args []string
	Log  *zap.Logger
}

// Scrape implements Scraper.
func (c *Command) Scrape(ctx context.Context, path string, opts Options) (*Result, error) {
	args := append([]string{}, c.Args...)
	for _, flag := range []struct{ name, value string }{
		{"mimetype", opts.MIMEType},
		{"version", opts.Version},
		{"charset", opts.Charset},
		{"delimiter", opts.Delimiter},
		{"separator", opts.Separator},
		{"quotechar", opts.QuoteChar},
	} {
		if flag.value != "" {
			args = append(args, "--"+flag.name+"="+flag.value)
		}
	}
	args = append(args, path)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.Log != nil {
		c.Log.Debug("running scraper", zap.String("command", c.Path), zap.Strings("args", args))
	}
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "running %s: %s", c.Path, strings.TrimSpace(stderr.String()))
	}
	result, err := ParseResult(&stdout)
	if err != nil {
		return nil, errors.Wrapf(err, "output of %s", c.Path)
	}
	if result.Tool == "" {
		result.Tool = filepath.Base(c.Path)
	}
	return result, nil
}
