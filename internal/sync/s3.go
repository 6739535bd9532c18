package sync

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures an S3Destination.
type S3Options struct {
	Bucket   string
	Key      string // object key of the rolling export
	Region   string
	Endpoint string // non-empty enables path-style addressing (MinIO and similar)

	// Archive additionally keeps one dated copy per day next to Key, so a
	// bad export never overwrites the only copy of last week's attendance.
	Archive  bool
	Location *time.Location // day boundary for archive keys; default UTC
}

// S3Destination writes JSONL data to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	opts   S3Options
	now    func() time.Time
}

// NewS3Destination creates an S3 destination from the default AWS credential chain.
func NewS3Destination(ctx context.Context, opts S3Options) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &S3Destination{
		client: s3.NewFromConfig(cfg, s3opts...),
		opts:   opts,
		now:    time.Now,
	}, nil
}

func (d *S3Destination) Name() string {
	return "s3://" + d.opts.Bucket + "/" + d.opts.Key
}

// Write uploads data to the configured key and, when archiving, to the
// dated key for today.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	if err := d.put(ctx, d.opts.Key, data); err != nil {
		return err
	}
	if d.opts.Archive {
		return d.put(ctx, archiveKey(d.opts.Key, d.now().In(d.opts.Location)), data)
	}
	return nil
}

func (d *S3Destination) put(ctx context.Context, key string, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}

// archiveKey places a dated copy of key under an archive/ prefix:
// "absenku/attendance.jsonl" on 2 March 2026 becomes
// "absenku/archive/attendance-2026-03-02.jsonl".
func archiveKey(key string, t time.Time) string {
	dir, file := path.Split(key)
	ext := path.Ext(file)
	base := strings.TrimSuffix(file, ext)
	return dir + "archive/" + base + "-" + t.Format("2006-01-02") + ext
}
