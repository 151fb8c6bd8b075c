package listing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ParentEntry is the synthetic first entry an S3Source emits so that object
// store listings and HTML indexes share the parent-sentinel convention.
const ParentEntry = "../"

// S3Lister is the subset of *s3.Client used by S3Source.
type S3Lister interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Source lists s3://bucket/prefix/ URLs. Common prefixes become folder
// entries ("20240101_10/") and object keys become file entries, both relative
// to the listed prefix.
type S3Source struct {
	client S3Lister
}

// S3Options configures NewS3Source.
type S3Options struct {
	Region string
	// Anonymous uses unsigned requests, for public archive buckets.
	Anonymous bool
}

// NewS3Source loads the default AWS configuration and returns an S3Source.
func NewS3Source(ctx context.Context, opts S3Options) (*S3Source, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Anonymous {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3SourceWithClient(s3.NewFromConfig(cfg)), nil
}

// NewS3SourceWithClient wraps an existing client.
func NewS3SourceWithClient(client S3Lister) *S3Source {
	return &S3Source{client: client}
}

// List implements Source.
func (s *S3Source) List(ctx context.Context, rawURL string) ([]string, error) {
	bucket, prefix, err := splitS3URL(rawURL)
	if err != nil {
		return nil, err
	}

	entries := []string{ParentEntry}
	in := &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}
	p := s3.NewListObjectsV2Paginator(s.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		entries = append(entries, pageEntries(page, prefix)...)
	}
	return entries, nil
}

// pageEntries converts one ListObjectsV2 page into listing entries: folders
// first, then files, each in the order S3 returned them (lexicographic).
func pageEntries(page *s3.ListObjectsV2Output, prefix string) []string {
	var out []string
	for _, cp := range page.CommonPrefixes {
		name := strings.TrimPrefix(aws.ToString(cp.Prefix), prefix)
		if name != "" && name != "/" {
			out = append(out, name)
		}
	}
	for _, obj := range page.Contents {
		name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
		// The prefix "directory" itself sometimes exists as an empty object.
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}

// splitS3URL turns s3://bucket/a/b/ into ("bucket", "a/b/").
func splitS3URL(rawURL string) (bucket, prefix string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 url: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 url: %q", rawURL)
	}
	prefix = strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return u.Host, prefix, nil
}
