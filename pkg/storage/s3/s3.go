// Package s3 implements the AWS S3 backend. It also serves any S3-compatible
// service reachable through a custom endpoint with path-style addressing.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/yi-nology/filebridge/pkg/storage"
)

const (
	// partSize is the multipart chunk used for streaming uploads, matching
	// the S3 minimum part size.
	partSize = 5 * 1024 * 1024

	defaultOperationTimeout = 15 * time.Second
)

// Config holds S3 backend configuration. AccessKey and SecretKey are optional;
// when absent the client falls back to ambient credentials (environment,
// shared profile, instance role).
type Config struct {
	Region           string
	Endpoint         string
	Bucket           string
	AccessKey        string
	SecretKey        string
	PathStyle        bool
	OperationTimeout time.Duration
}

// Backend implements storage.Backend, storage.StreamUploader and
// storage.URLSigner on top of the AWS SDK v2 client.
type Backend struct {
	client    *awss3.Client
	uploader  *manager.Uploader
	presigner *awss3.PresignClient
	bucket    string
	opTimeout time.Duration
}

// New creates an S3 backend. Region and bucket are required; missing fields
// fail construction immediately.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Region == "" {
		return nil, storage.ConfigError("s3", "region")
	}
	if cfg.Bucket == "" {
		return nil, storage.ConfigError("s3", "bucket")
	}

	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3OptFns []func(*awss3.Options)
	if cfg.Endpoint != "" {
		s3OptFns = append(s3OptFns, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3OptFns = append(s3OptFns, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	client := awss3.NewFromConfig(awsCfg, s3OptFns...)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})

	opTimeout := cfg.OperationTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOperationTimeout
	}

	return &Backend{
		client:    client,
		uploader:  uploader,
		presigner: awss3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		opTimeout: opTimeout,
	}, nil
}

// Exists checks object presence with a HEAD request. Only a confirmed 404
// collapses to false; every other failure propagates.
func (b *Backend) Exists(ctx context.Context, scope storage.Scope, fileID string) (bool, error) {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return false, err
	}

	ctx, cancel := b.withOpTimeout(ctx)
	defer cancel()

	_, err = b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object: %w", err)
	}
	return true, nil
}

// Upload transmits data as one atomic PutObject; S3 never exposes a partially
// written object from a failed single put.
func (b *Backend) Upload(ctx context.Context, scope storage.Scope, fileID string, data []byte, contentType string) error {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return err
	}

	input := &awss3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// StreamUpload transmits r through the managed multipart uploader without
// holding the full payload in memory. A completed multipart upload is atomic;
// after a failed one the uploader aborts its parts and a best-effort delete
// clears any stray object before the failure is re-raised.
func (b *Backend) StreamUpload(ctx context.Context, scope storage.Scope, fileID string, r io.Reader, contentType string) error {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return err
	}

	input := &awss3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.opTimeout)
		defer cancel()
		_, _ = b.client.DeleteObject(cleanupCtx, &awss3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		return fmt.Errorf("stream upload: %w", err)
	}
	return nil
}

// Download returns the object body with the length reported by S3.
func (b *Backend) Download(ctx context.Context, scope storage.Scope, fileID string) (*storage.Object, error) {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return nil, err
	}

	output, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w (key = %s)", storage.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}

	length := storage.LengthUnknown
	if output.ContentLength != nil {
		length = *output.ContentLength
	}
	return &storage.Object{
		Body:          output.Body,
		ContentLength: length,
		ContentType:   aws.ToString(output.ContentType),
	}, nil
}

// Delete removes the object. S3 DeleteObject succeeds for absent keys, so the
// operation is idempotent as-is.
func (b *Backend) Delete(ctx context.Context, scope storage.Scope, fileID string) error {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return err
	}

	ctx, cancel := b.withOpTimeout(ctx)
	defer cancel()

	if _, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// SignDownloadURL produces a presigned GET URL carrying an attachment
// disposition for the stored file name.
func (b *Backend) SignDownloadURL(ctx context.Context, scope storage.Scope, fileID, fileName string, expiry time.Duration) (string, error) {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return "", err
	}

	input := &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}
	if fileName != "" {
		input.ResponseContentDisposition = aws.String(fmt.Sprintf("attachment; filename=%q", fileName))
	}

	result, err := b.presigner.PresignGetObject(ctx, input, func(opts *awss3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign url: %w", err)
	}
	return result.URL, nil
}

// Type returns "s3" as the backend selector identifier.
func (b *Backend) Type() string {
	return "s3"
}

func (b *Backend) withOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.opTimeout)
}

// isNotFound classifies a confirmed missing-object response. Anything else
// (timeout, auth, connection reset) stays an error.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
