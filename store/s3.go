package store

import (
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	raven "github.com/getsentry/raven-go"
)

// A S3 store represents a store that is kept on AWS S3 storage.
// Do not change Bucket or Prefix concurrently with calls using the structure.
type S3 struct {
	svc      *s3.S3
	uploader *s3manager.Uploader
	Bucket   string
	Prefix   string
}

var _ Store = &S3{}

// NewS3 creates a new S3 store. It will use the given bucket and will prepend
// prefix to all keys. This is to allow for a bucket to be used for more than
// one store. For example if prefix were "sips/" then an Open("hello.tar")
// would look for the key "sips/hello.tar" in the bucket. The authorization
// method and credentials in the session are used for all accesses.
func NewS3(bucket, prefix string, awsSession *session.Session) *S3 {
	return &S3{
		Bucket:   bucket,
		Prefix:   prefix,
		svc:      s3.New(awsSession),
		uploader: s3manager.NewUploader(awsSession),
	}
}

func (s *S3) tags(extra ...string) map[string]string {
	t := map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix}
	for i := 0; i+1 < len(extra); i += 2 {
		t[extra[i]] = extra[i+1]
	}
	return t
}

// List returns a list of all the keys in this store. It will only return ones
// that satisfy the store's Prefix, so it is safe to use this on a bucket
// containing other items.
func (s *S3) List() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		keys, err := s.ListPrefix("")
		if err != nil {
			return
		}
		for _, k := range keys {
			out <- k
		}
	}()
	return out
}

// ListPrefix returns the keys in this store that have the given prefix.
// The argument prefix is added to the store's Prefix.
func (s *S3) ListPrefix(prefix string) ([]string, error) {
	var result []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix + prefix),
	}
	err := s.svc.ListObjectsV2Pages(input,
		func(page *s3.ListObjectsV2Output, lastpage bool) bool {
			for _, item := range page.Contents {
				result = append(result, strings.TrimPrefix(*item.Key, s.Prefix))
			}
			return !lastpage
		})
	if err != nil {
		raven.CaptureError(err, s.tags("Pattern", prefix))
	}
	return result, err
}

// Open will return a ReadAtCloser to get the content for the given key.
// Every ReadAt is a ranged GET request.
func (s *S3) Open(key string) (ReadAtCloser, int64, error) {
	size, err := s.stat(key)
	if err != nil {
		return nil, 0, err
	}
	result := &s3ReadAtCloser{
		svc:    s.svc,
		bucket: s.Bucket,
		key:    s.Prefix + key,
		size:   size,
	}
	return result, size, nil
}

// Create will return a WriteCloser to upload content to the given key. The
// data is streamed to the s3manager uploader, which sends it in parts. The
// upload finishes when the writer is closed.
func (s *S3) Create(key string) (io.WriteCloser, error) {
	_, err := s.stat(key)
	if err == nil {
		return nil, ErrKeyExists
	}
	if err != ErrNotFound {
		return nil, err
	}
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := s.uploader.Upload(&s3manager.UploadInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(s.Prefix + key),
			Body:   pr,
		})
		if err != nil {
			raven.CaptureError(err, s.tags("Key", key))
		}
		// unblock the writer if the upload stopped early
		pr.CloseWithError(err)
		done <- err
	}()
	return &s3Upload{pw: pw, done: done}, nil
}

type s3Upload struct {
	pw   *io.PipeWriter
	done chan error
}

func (u *s3Upload) Write(p []byte) (int, error) {
	return u.pw.Write(p)
}

func (u *s3Upload) Close() error {
	u.pw.Close()
	return <-u.done
}

// Delete will remove the given key from the store. The store's Prefix is
// prepended first. It is not an error to delete something that doesn't exist.
func (s *S3) Delete(key string) error {
	_, err := s.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		raven.CaptureError(err, s.tags("Key", key))
	}
	return err
}

// stat will check if a key exists, and if so it returns the size. The prefix
// is added to the key before checking.
func (s *S3) stat(key string) (int64, error) {
	info, err := s.svc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == "NotFound" || aerr.Code() == s3.ErrCodeNoSuchKey) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return aws.Int64Value(info.ContentLength), nil
}

// s3ReadAtCloser adapts ranged GET requests to the io.ReaderAt interface.
type s3ReadAtCloser struct {
	svc    *s3.S3
	bucket string
	key    string
	size   int64
}

// ReadAt implements the io.ReaderAt interface.
func (rac *s3ReadAtCloser) ReadAt(p []byte, offset int64) (int, error) {
	if offset >= rac.size {
		return 0, io.EOF
	}
	end := offset + int64(len(p))
	if end > rac.size {
		end = rac.size
	}
	out, err := rac.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(rac.bucket),
		Key:    aws.String(rac.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, end-1)),
	})
	if err != nil {
		return 0, err
	}
	defer out.Body.Close()
	n, err := io.ReadFull(out.Body, p[:end-offset])
	if err == nil && int64(n) < int64(len(p)) {
		err = io.EOF
	}
	return n, err
}

func (rac *s3ReadAtCloser) Close() error {
	return nil
}
