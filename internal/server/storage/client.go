// Package storage talks to the S3-compatible object store: it presigns
// upload and view URLs for generated keys and deletes objects in batches.
package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

// Presigner is the part of *s3.PresignClient the Issuer needs.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ObjectDeleter is the part of *s3.Client the Deleter needs.
type ObjectDeleter interface {
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Settings selects and authenticates against one bucket.
type Settings struct {
	AccessKey    string
	SecretKey    string
	Region       string
	BaseEndpoint string
	UsePathStyle bool
}

// NewClient builds an S3 client with static credentials. BaseEndpoint and
// UsePathStyle make it work against MinIO and R2 as well as AWS.
func NewClient(ctx context.Context, s Settings) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.AccessKey,
			s.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.BaseEndpoint)
		}
		o.UsePathStyle = s.UsePathStyle
	}), nil
}

// NewPresigner wraps c for presigning.
func NewPresigner(c *s3.Client) *s3.PresignClient {
	return newS3PresignClient(c)
}
