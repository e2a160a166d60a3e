// Package storage uploads ciphertext artifacts to S3-compatible object
// storage.
package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
)

// Params configures the uploader. AccessKey/SecretKey switch the client to
// static credentials; BaseEndpoint points at an S3-compatible backend such
// as MinIO and forces path-style addressing.
type Params struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

type S3Uploader struct {
	bucket string
	client *s3.Client
}

func NewS3Uploader(ctx context.Context, p Params) (*S3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(p.Region),
	}
	if p.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.AccessKey, p.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading storage config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if p.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(p.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{bucket: p.Bucket, client: client}, nil
}

// Upload writes body so it is retrievable at key within the configured
// bucket.
func (u *S3Uploader) Upload(ctx context.Context, key string, body []byte) error {
	_, err := putObject(u.client, ctx, &s3.PutObjectInput{
		Bucket: &u.bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}
