package publish

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/config"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
	"github.com/ekaya-inc/assembly-factory/pkg/retry"
)

// objectAPI is the part of the S3 client the publisher uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Publisher writes one manifest object per assembly code.
type S3Publisher struct {
	client objectAPI
	bucket string
	prefix string
	retry  *retry.Config
	now    func() time.Time
	logger *zap.Logger
}

var _ Publisher = (*S3Publisher)(nil)

// New returns an S3Publisher when a bucket is configured and Noop otherwise.
func New(ctx context.Context, cfg config.PublishConfig, logger *zap.Logger) (Publisher, error) {
	if cfg.Bucket == "" {
		logger.Info("Deploy publishing disabled (no bucket configured)")
		return Noop{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	logger.Info("Deploy publishing to S3",
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", cfg.Prefix),
		zap.String("region", cfg.Region))
	return NewS3Publisher(s3.NewFromConfig(awsCfg, opts...), cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3Publisher creates a publisher over an existing client.
func NewS3Publisher(client objectAPI, bucket, prefix string, logger *zap.Logger) *S3Publisher {
	return &S3Publisher{
		client: client,
		bucket: bucket,
		prefix: prefix,
		retry:  retry.DefaultConfig(),
		now:    time.Now,
		logger: logger.Named("publish"),
	}
}

// Key returns the object key for an assembly.
func (p *S3Publisher) Key(a *models.Assembly) string {
	return p.prefix + a.Code + ".json"
}

// Publish uploads the assembly manifest, retrying transient failures.
func (p *S3Publisher) Publish(ctx context.Context, a *models.Assembly) (string, error) {
	body, err := NewManifest(a, p.now()).Encode()
	if err != nil {
		return "", err
	}
	key := p.Key(a)

	err = retry.DoIfRetryable(ctx, p.retry, func() error {
		_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/json"),
			Metadata: map[string]string{
				"assembly-id": a.ID.String(),
				"version":     fmt.Sprint(a.Version),
			},
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish %s to s3://%s/%s: %w", a.Code, p.bucket, key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", p.bucket, key)
	p.logger.Info("Published assembly manifest",
		zap.String("assembly_id", a.ID.String()),
		zap.String("location", location))
	return location, nil
}

// Withdraw deletes the assembly manifest. Deleting a missing object succeeds.
func (p *S3Publisher) Withdraw(ctx context.Context, a *models.Assembly) error {
	key := p.Key(a)
	err := retry.DoIfRetryable(ctx, p.retry, func() error {
		_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to withdraw %s from s3://%s/%s: %w", a.Code, p.bucket, key, err)
	}
	p.logger.Info("Withdrew assembly manifest",
		zap.String("assembly_id", a.ID.String()),
		zap.String("key", key))
	return nil
}
