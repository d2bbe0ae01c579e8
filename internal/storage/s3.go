package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/spf13/viper"
)

const minMultipartSize = 12 << 20

// S3 keeps share units under <tag>/<blob> keys in a single bucket
type S3 struct {
	C      *s3.Client
	Bucket *string
}

func NewS3() (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			viper.GetString("aws.access_key"),
			viper.GetString("aws.secret_access_key"),
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	bucket := aws.String(viper.GetString("aws.bucket"))

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.Region = viper.GetString("aws.region")
	})

	_, err = client.HeadBucket(context.TODO(), &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", *bucket)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &S3{
		C:      client,
		Bucket: bucket,
	}, nil
}

func (s *S3) key(dir, name string) *string {
	return aws.String(dir + "/" + name)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (s *S3) Put(ctx context.Context, dir, name string, r io.Reader, size int64) (int64, error) {
	cr := &countingReader{r: r}

	input := &s3.PutObjectInput{
		Bucket:      s.Bucket,
		Key:         s.key(dir, name),
		Body:        cr,
		ContentType: aws.String("application/octet-stream"),
	}

	var err error
	if size >= 0 && size < minMultipartSize {
		input.ContentLength = aws.Int64(size)
		_, err = s.C.PutObject(ctx, input)
	} else {
		// Unknown or large sizes go through the multipart manager so the
		// body never has to be buffered whole
		uploader := manager.NewUploader(s.C, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 6 << 20
		})
		_, err = uploader.Upload(ctx, input)
	}
	if err != nil {
		return cr.n, fmt.Errorf("failed to upload blob to S3, %w", err)
	}

	return cr.n, nil
}

func (s *S3) Open(ctx context.Context, dir, name string) (io.ReadCloser, int64, error) {
	out, err := s.C.GetObject(ctx, &s3.GetObjectInput{
		Bucket: s.Bucket,
		Key:    s.key(dir, name),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to get blob from S3, %w", err)
	}

	return out.Body, aws.ToInt64(out.ContentLength), nil
}

func (s *S3) Stat(ctx context.Context, dir, name string) (int64, error) {
	out, err := s.C.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: s.Bucket,
		Key:    s.key(dir, name),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to stat blob in S3, %w", err)
	}

	return aws.ToInt64(out.ContentLength), nil
}

func (s *S3) ReadFile(ctx context.Context, dir, name string) ([]byte, error) {
	body, _, err := s.Open(ctx, dir, name)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return io.ReadAll(body)
}

func (s *S3) WriteFile(ctx context.Context, dir, name string, data []byte) error {
	_, err := s.Put(ctx, dir, name, bytes.NewReader(data), int64(len(data)))
	return err
}

func (s *S3) List(ctx context.Context, dir string) ([]string, error) {
	out, err := s.C.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: s.Bucket,
		Prefix: aws.String(dir + "/"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs in S3, %w", err)
	}

	if len(out.Contents) == 0 {
		return nil, ErrNotFound
	}

	names := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		names = append(names, strings.TrimPrefix(aws.ToString(obj.Key), dir+"/"))
	}

	return names, nil
}

func (s *S3) ListDirs(ctx context.Context) ([]string, error) {
	out, err := s.C.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    s.Bucket,
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list share units in S3, %w", err)
	}

	dirs := make([]string, 0, len(out.CommonPrefixes))
	for _, p := range out.CommonPrefixes {
		dirs = append(dirs, strings.TrimSuffix(aws.ToString(p.Prefix), "/"))
	}

	return dirs, nil
}

func (s *S3) Remove(ctx context.Context, dir, name string) error {
	_, err := s.C.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: s.Bucket,
		Key:    s.key(dir, name),
	})
	if err != nil {
		return fmt.Errorf("failed to delete blob from S3, %w", err)
	}

	return nil
}

func (s *S3) RemoveDir(ctx context.Context, dir string) error {
	names, err := s.List(ctx, dir)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	// S3 can delete at most 1000 objects in one batch request
	for start := 0; start < len(names); start += 1000 {
		end := min(start+1000, len(names))

		objects := make([]types.ObjectIdentifier, end-start)
		for i, name := range names[start:end] {
			objects[i] = types.ObjectIdentifier{Key: s.key(dir, name)}
		}

		_, err := s.C.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: s.Bucket,
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return fmt.Errorf("failed to delete share unit from S3, %w", err)
		}
	}

	return nil
}

func isNoSuchKey(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}

	return false
}
