package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options configures Open.
type Options struct {
	// Region is used for s3:// locations.
	Region string
	// Endpoint overrides the S3 endpoint (e.g. LocalStack). Implies path-style.
	Endpoint string
}

// IsS3 reports whether location names an S3 bucket.
func IsS3(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// ParseS3 splits "s3://bucket/prefix" into bucket and prefix.
func ParseS3(location string) (bucket, prefix string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: want s3://bucket/prefix", location)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// Open returns the BlobStore for location: an S3Store for s3:// URLs,
// otherwise a LocalStore rooted at the path.
func Open(ctx context.Context, location string, opts Options) (BlobStore, error) {
	if !IsS3(location) {
		return NewLocalStore(location), nil
	}

	bucket, prefix, err := ParseS3(location)
	if err != nil {
		return nil, err
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}
	return NewS3Store(cfg, bucket, prefix, s3Opts...), nil
}
