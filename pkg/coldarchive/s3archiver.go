package coldarchive

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archiver uploads snappy-compressed, fully-compacted segments to an
// S3 bucket under a fixed key prefix.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archiver builds an Archiver from the default AWS credential chain
// (environment, shared config, IAM role).
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("coldarchive: loading AWS config: %w", err)
	}
	return &S3Archiver{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// archiveKey builds the S3 key a segment is uploaded under:
// <prefix>/<segment basename>.snappy. Factored out of Archive so the
// key layout can be tested without a live S3 client.
func archiveKey(prefix, segmentPath string) string {
	return filepath.ToSlash(filepath.Join(prefix, filepath.Base(segmentPath)+".snappy"))
}

// Archive snappy-compresses data and PUTs it to
// s3://bucket/prefix/<segment basename>.snappy.
func (a *S3Archiver) Archive(ctx context.Context, segmentPath string, data []byte) error {
	key := archiveKey(a.prefix, segmentPath)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(compress(data)),
	})
	if err != nil {
		return fmt.Errorf("coldarchive: uploading %s to s3://%s/%s: %w", segmentPath, a.bucket, key, err)
	}
	return nil
}
