package syncfolder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/vaultsync/internal/client/synccodec"
	"github.com/dmitrijs2005/vaultsync/internal/common"
)

// s3API is the subset of *s3.Client used here.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3 is a sync folder under a key prefix of an S3-compatible bucket.
type S3 struct {
	api    s3API
	bucket string
	prefix string
}

func NewS3(api s3API, bucket, prefix string) *S3 {
	return &S3{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewS3FromConfig builds the client from opts. Static credentials are used
// when an access key is given, the SDK default chain otherwise. A custom
// endpoint (MinIO and friends) switches to path-style addressing.
func NewS3FromConfig(ctx context.Context, bucket, prefix string, opts S3Options) (*S3, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, common.E(common.KindSyncFolderUnavailable, "syncfolder.NewS3FromConfig", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3(client, bucket, prefix), nil
}

func (s *S3) Location() string {
	if s.prefix == "" {
		return s3Scheme + s.bucket
	}
	return s3Scheme + s.bucket + "/" + s.prefix
}

func (s *S3) key(parts ...string) string {
	if s.prefix != "" {
		parts = append([]string{s.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func (s *S3) capturesPrefix() string { return s.key(synccodec.CapturesFolder) + "/" }

func (s *S3) Check(ctx context.Context) error {
	if _, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return common.E(common.KindSyncFolderUnavailable, "syncfolder.S3.Check", err)
	}
	return nil
}

func (s *S3) get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *S3) ReadSyncFile(ctx context.Context) ([]byte, error) {
	body, err := s.get(ctx, s.key(synccodec.FileName))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync file: %w", err)
	}
	return data, nil
}

func (s *S3) WriteSyncFile(ctx context.Context, data []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(synccodec.FileName)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to write sync file: %w", err)
	}
	return nil
}

func (s *S3) ListCaptures(ctx context.Context) ([]FileInfo, error) {
	prefix := s.capturesPrefix()
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	out := make([]FileInfo, 0)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list captures: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if validName(name) != nil {
				continue
			}
			out = append(out, FileInfo{Name: name, Size: aws.ToInt64(obj.Size), ModTime: aws.ToTime(obj.LastModified)})
		}
	}
	return out, nil
}

// PutCapture uploads r. S3 assigns its own LastModified, so modTime is kept
// only as object metadata.
func (s *S3) PutCapture(ctx context.Context, name string, r io.Reader, size int64, modTime time.Time) error {
	if err := validName(name); err != nil {
		return err
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.capturesPrefix() + name),
		Body:          r,
		ContentLength: aws.Int64(size),
	}
	if !modTime.IsZero() {
		in.Metadata = map[string]string{"mtime": modTime.UTC().Format(time.RFC3339Nano)}
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("failed to put capture %s: %w", name, err)
	}
	return nil
}

func (s *S3) OpenCapture(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return s.get(ctx, s.capturesPrefix()+name)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var re interface{ HTTPStatusCode() int }
	return errors.As(err, &re) && re.HTTPStatusCode() == 404
}
