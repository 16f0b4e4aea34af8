package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBucketPrefix(t *testing.T) {
	var table = []struct {
		location, addition string
		bucket, prefix     string
	}{
		{"", "", "", ""},
		{"bucket", "", "bucket", ""},
		{"/bucket", "", "bucket", ""},
		{"bucket/", "", "bucket", ""},
		{"bucket/and/a/prefix", "", "bucket", "and/a/prefix/"},
		{"bucket/and/a/prefix/", "", "bucket", "and/a/prefix/"},
		{"bucket", "sips", "bucket", "sips/"},
		{"bucket/pre", "sips", "bucket", "pre/sips/"},
	}
	for _, tab := range table {
		b, p := splitBucketPrefix(tab.location, tab.addition)
		assert.Equal(t, tab.bucket, b, tab.location)
		assert.Equal(t, tab.prefix, p, tab.location)
	}
}

func TestParseLocation(t *testing.T) {
	s, err := ParseLocation("")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	dir := filepath.Join(t.TempDir(), "out")
	s, err = ParseLocation(dir)
	require.NoError(t, err)
	assert.IsType(t, &FileSystem{}, s)
	assert.DirExists(t, dir)

	s, err = ParseLocation("file://" + dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.(*FileSystem).root)

	s, err = ParseLocation("s3:///my-bucket/sips")
	require.NoError(t, err)
	s3store := s.(*S3)
	assert.Equal(t, "my-bucket", s3store.Bucket)
	assert.Equal(t, "sips/", s3store.Prefix)

	_, err = ParseLocation("s3:///")
	assert.Error(t, err)

	_, err = ParseLocation("ftp://example.org/x")
	assert.Error(t, err)
}
