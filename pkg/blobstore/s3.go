package blobstore

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
	"github.com/tobiasegelund/duckingit/pkg/log"
)

// S3Store is the production Store binding: a single S3-compatible
// bucket, addressed with plain keys (no leading "s3://bucket/" — that
// scheme prefix is stripped by the caller, see pkg/source).
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
}

// NewS3Store builds an S3Store for bucket using the default AWS SDK
// credential chain (environment, shared config, instance role).
func NewS3Store(ctx context.Context, bucket string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, lakeerr.Wrap(err, lakeerr.KindConfigError, "loading AWS credential chain")
	}

	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     bucket,
	}, nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	var objs []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, lakeerr.Wrapf(err, lakeerr.KindInvalidSource, "listing s3://%s/%s", s.bucket, prefix)
		}
		for _, obj := range page.Contents {
			objs = append(objs, Object{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)})
		}
	}

	return objs, nil
}

func (s *S3Store) Read(ctx context.Context, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, lakeerr.Wrapf(err, lakeerr.KindSourceNotFound, "reading s3://%s/%s", s.bucket, key)
	}
	return buf.Bytes(), nil
}

func (s *S3Store) Write(ctx context.Context, key string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return lakeerr.Wrapf(err, lakeerr.KindDispatchError, "writing s3://%s/%s", s.bucket, key)
	}
	log.WithComponent("blobstore.s3").Debug().Str("key", key).Int("bytes", len(data)).Msg("wrote object")
	return nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound interface{ ErrorCode() string }
	if errors.As(err, &notFound) {
		switch notFound.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return false, nil
		}
	}
	if strings.Contains(err.Error(), "StatusCode: 404") {
		return false, nil
	}
	return false, lakeerr.Wrapf(err, lakeerr.KindInvalidSource, "checking s3://%s/%s", s.bucket, key)
}
