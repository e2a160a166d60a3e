package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUploader(t *testing.T) *S3Uploader {
	t.Helper()
	u, err := NewS3Uploader(context.Background(), Params{
		Bucket:       "artifacts",
		Region:       "us-east-1",
		BaseEndpoint: "http://127.0.0.1:9000/",
		AccessKey:    "admin",
		SecretKey:    "secretpassword",
	})
	require.NoError(t, err)
	return u
}

func TestUpload_SendsBucketKeyAndBody(t *testing.T) {
	orig := putObject
	t.Cleanup(func() { putObject = orig })

	var gotIn *s3.PutObjectInput
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		gotIn = in
		return &s3.PutObjectOutput{}, nil
	}

	u := newTestUploader(t)
	err := u.Upload(context.Background(), "sub/a.txt.encrypted", []byte("cipher"))
	require.NoError(t, err)

	require.NotNil(t, gotIn)
	assert.Equal(t, "artifacts", *gotIn.Bucket)
	assert.Equal(t, "sub/a.txt.encrypted", *gotIn.Key)

	body, err := io.ReadAll(gotIn.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("cipher"), body)
}

func TestUpload_WrapsError(t *testing.T) {
	orig := putObject
	t.Cleanup(func() { putObject = orig })

	boom := errors.New("access denied")
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return nil, boom
	}

	u := newTestUploader(t)
	err := u.Upload(context.Background(), "a.txt.encrypted", []byte("cipher"))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "a.txt.encrypted")
}

func TestNewS3Uploader_ConfigLoadError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	boom := errors.New("bad profile")
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, boom
	}

	_, err := NewS3Uploader(context.Background(), Params{Bucket: "b"})
	require.ErrorIs(t, err, boom)
}
