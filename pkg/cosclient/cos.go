package cosclient

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// COSClient talks to Tencent COS through its S3-compatible API. It is bound
// to one bucket and speaks to one endpoint at a time.
type COSClient struct {
	cfg      Config
	awsCfg   aws.Config
	client   *s3.Client
	uploader *manager.Uploader
	endpoint Endpoint
}

// Config holds the credentials and bucket binding for one run.
type Config struct {
	SecretID  string
	SecretKey string
	Region    string
	Bucket    string
}

// New builds a client configured for the primary (regional) endpoint.
func New(ctx context.Context, cfg Config) (*COSClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.SecretID, cfg.SecretKey, ""),
		),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	c := &COSClient{cfg: cfg, awsCfg: awsCfg}
	c.ConfigureEndpoint(EndpointPrimary)
	return c, nil
}

// ConfigureEndpoint rebuilds the underlying S3 client against the requested
// endpoint. The primary endpoint gets a single attempt and a short request
// timeout so a bad region fails over fast; the accelerated endpoint gets
// retries and room to finish.
func (c *COSClient) ConfigureEndpoint(kind Endpoint) {
	url := endpointURL(kind, c.cfg.Region)
	attempts := 1
	timeout := 10 * time.Second
	if kind == EndpointAccelerated {
		attempts = 5
		timeout = 60 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	c.client = s3.NewFromConfig(c.awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(url)
		o.RetryMaxAttempts = attempts
		o.HTTPClient = httpClient
	})
	c.uploader = manager.NewUploader(c.client)
	c.endpoint = kind
}

// Endpoint returns the endpoint the client is currently configured for.
func (c *COSClient) Endpoint() Endpoint { return c.endpoint }

func endpointURL(kind Endpoint, region string) string {
	if kind == EndpointAccelerated {
		return "https://cos.accelerate.myqcloud.com"
	}
	return fmt.Sprintf("https://cos.%s.myqcloud.com", region)
}

func (c *COSClient) Upload(ctx context.Context, req *UploadRequest) error {
	file, err := os.Open(req.LocalPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(req.Key),
		Body:   file,
	}
	if contentType := guessContentType(req.LocalPath); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", req.Key, err)
	}
	return nil
}

func (c *COSClient) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.cfg.Bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			keys = append(keys, *obj.Key)
		}
	}

	return keys, nil
}

func (c *COSClient) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
