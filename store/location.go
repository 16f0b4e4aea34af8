package store

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
)

// splitBucketPrefix will take a path and separate the bucket name from a prefix, if any.
// It will also append "addition" to the prefix, and make sure the prefix returned is
// either empty or ends with a slash "/".
//
// examples:
//
//	"" -> ("", "")
//	"bucket" -> ("bucket", "")
//	"bucket/and/a/prefix" -> ("bucket", "and/a/prefix/")
func splitBucketPrefix(location string, addition string) (bucket, prefix string) {
	if location == "" {
		return
	}
	location = strings.TrimPrefix(location, "/")
	v := strings.SplitN(location, "/", 2)
	bucket = v[0]
	if len(v) > 1 {
		prefix = v[1]
	}
	if addition != "" {
		prefix = path.Join(prefix, addition)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return
}

// ParseLocation will create an appropriate store based on "location".
// If location is empty, a memory store is returned. A plain path or a
// "file:" URL gives a FileSystem store, creating the directory if needed.
// "s3://host/bucket/prefix" gives an S3 store; the host is optional and
// names a custom endpoint.
func ParseLocation(location string) (Store, error) {
	if location == "" {
		return NewMemory(), nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "", "file":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		p = filepath.Clean(p)
		if err := os.MkdirAll(p, 0755); err != nil {
			return nil, err
		}
		return NewFileSystem(p), nil
	case "s3":
		conf := &aws.Config{}
		if u.Host != "" {
			conf.Endpoint = aws.String(u.Host)
			conf.Region = aws.String("us-east-1")
			// disable SSL for local development
			if strings.Contains(u.Host, "localhost") {
				conf.DisableSSL = aws.Bool(true)
				conf.S3ForcePathStyle = aws.Bool(true)
			}
		}
		bucket, prefix := splitBucketPrefix(u.Path, "")
		if bucket == "" {
			return nil, fmt.Errorf("Error parsing location, no bucket name: %s", location)
		}
		sess, err := session.NewSession(conf)
		if err != nil {
			return nil, err
		}
		return NewS3(bucket, prefix, sess), nil
	}
	return nil, fmt.Errorf("Problem parsing location %s", location)
}
