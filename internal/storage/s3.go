package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// presignTTL bounds how long a resolved attachment URL stays valid.
const presignTTL = 15 * time.Minute

type Client struct {
	s3      *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func New(ctx context.Context) (*Client, error) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	bucket := os.Getenv("MINIO_BUCKET")
	access := os.Getenv("MINIO_ACCESS_KEY")
	secret := os.Getenv("MINIO_SECRET_KEY")
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: fmt.Sprintf("http://%s", endpoint),
			HostnameImmutable: true}, nil
	})
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(access,
			secret,
			"")),
		config.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)
	return &Client{s3: client, presign: s3.NewPresignClient(client), bucket: bucket}, nil
}

// PutAttachment stores raw attachment bytes and returns the storage
// path recorded on the submission row.
func (c *Client) PutAttachment(ctx context.Context, fileName, mimeType string, data []byte) (string, error) {
	key := fmt.Sprintf("attachments/%s/%s", uuid.New().String(), path.Base(fileName))
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// ResolveTemporaryURL returns a time-limited GET URL for a stored
// attachment. Used by the message builder for image attachments.
func (c *Client) ResolveTemporaryURL(ctx context.Context, storagePath string) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &storagePath,
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", storagePath, err)
	}
	return req.URL, nil
}
