package scraper

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	cat, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}
	// cat prints the stored result, standing in for a characterization tool
	p := writeFile(t, "result.json", []byte(videoResult))
	c := &Command{Path: cat}
	r, err := c.Scrape(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", r.MIMEType)
	assert.Len(t, r.Streams, 4)

	_, err = c.Scrape(context.Background(), p+".missing", Options{})
	assert.Error(t, err)
}
