package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/debemdeboas/lending-admin/internal/model"
)

// s3API is the subset of the S3 client the repository needs.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type S3Options struct {
	Bucket          string
	Prefix          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

type S3DocumentRepository struct { // implements DocumentRepository
	changeNotifier

	client s3API
	bucket string
	prefix string

	hashes       hashTracker
	pollInterval time.Duration
	stop         context.CancelFunc
}

func NewS3DocumentRepository(ctx context.Context, opts S3Options, pollInterval time.Duration) (*S3DocumentRepository, error) {
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3DocumentRepository(client, opts.Bucket, opts.Prefix, pollInterval), nil
}

func newS3DocumentRepository(client s3API, bucket, prefix string, pollInterval time.Duration) *S3DocumentRepository {
	return &S3DocumentRepository{
		client:       client,
		bucket:       bucket,
		prefix:       prefix,
		hashes:       newHashTracker(),
		pollInterval: pollInterval,
	}
}

func (r *S3DocumentRepository) objectKey(key model.ResourceKey) string {
	return r.prefix + string(key) + documentExt
}

func (r *S3DocumentRepository) Init(ctx context.Context) error {
	current, err := r.listHashes(ctx)
	if err != nil {
		return fmt.Errorf("error initializing documents: %w", err)
	}
	r.hashes.seed(current)

	watchCtx, cancel := context.WithCancel(context.Background())
	r.stop = cancel
	go watchHashes(watchCtx, "s3", r.pollInterval, r.listHashes, r.hashes, r.notify)

	return nil
}

// listHashes uses object ETags as content hashes.
func (r *S3DocumentRepository) listHashes(ctx context.Context) (map[model.ResourceKey]string, error) {
	hashes := make(map[model.ResourceKey]string)

	var token *string
	for {
		out, err := r.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(r.bucket),
			Prefix:            aws.String(r.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("error listing objects: %w", err)
		}

		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), r.prefix)
			if !strings.HasSuffix(name, documentExt) || strings.Contains(name, "/") {
				continue
			}
			hashes[model.ResourceKey(strings.TrimSuffix(name, documentExt))] = aws.ToString(obj.ETag)
		}

		if !aws.ToBool(out.IsTruncated) {
			return hashes, nil
		}
		token = out.NextContinuationToken
	}
}

func (r *S3DocumentRepository) Get(ctx context.Context, key model.ResourceKey) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("error reading document %s: %w", key, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading document %s: %w", key, err)
	}
	return content, nil
}

func (r *S3DocumentRepository) Put(ctx context.Context, key model.ResourceKey, data []byte) error {
	out, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("error saving document %s: %w", key, err)
	}

	if r.hashes.observe(key, aws.ToString(out.ETag)) {
		r.notify(key)
	}
	return nil
}

func (r *S3DocumentRepository) Keys(ctx context.Context) ([]model.ResourceKey, error) {
	hashes, err := r.listHashes(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]model.ResourceKey, 0, len(hashes))
	for key := range hashes {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

func (r *S3DocumentRepository) Close() error {
	if r.stop != nil {
		r.stop()
	}
	return nil
}
