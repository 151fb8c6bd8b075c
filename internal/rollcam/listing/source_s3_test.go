package listing_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/rollcam/rollcam/internal/rollcam/listing"
)

type fakeS3 struct {
	pages []*s3.ListObjectsV2Output
	input *s3.ListObjectsV2Input
	n     int
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.input = in
	p := f.pages[f.n]
	f.n++
	return p, nil
}

func TestS3Source_List(t *testing.T) {
	fake := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			CommonPrefixes: []types.CommonPrefix{
				{Prefix: aws.String("rl1/20240101_10/")},
			},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("tok"),
		},
		{
			CommonPrefixes: []types.CommonPrefix{
				{Prefix: aws.String("rl1/20240101_11/")},
			},
			Contents: []types.Object{
				{Key: aws.String("rl1/")},
				{Key: aws.String("rl1/readme.txt")},
			},
			IsTruncated: aws.Bool(false),
		},
	}}
	src := listing.NewS3SourceWithClient(fake)

	got, err := src.List(context.Background(), "s3://archive/rl1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"../", "20240101_10/", "20240101_11/", "readme.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if aws.ToString(fake.input.Bucket) != "archive" || aws.ToString(fake.input.Prefix) != "rl1/" || aws.ToString(fake.input.Delimiter) != "/" {
		t.Errorf("unexpected input: bucket=%q prefix=%q delim=%q",
			aws.ToString(fake.input.Bucket), aws.ToString(fake.input.Prefix), aws.ToString(fake.input.Delimiter))
	}
}

func TestS3Source_RejectsOtherSchemes(t *testing.T) {
	src := listing.NewS3SourceWithClient(&fakeS3{})
	if _, err := src.List(context.Background(), "https://archive/rl1/"); err == nil {
		t.Fatal("expected error for non-s3 url")
	}
}
