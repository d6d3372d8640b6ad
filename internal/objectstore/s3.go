package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Uploader stores photos in a private bucket and hands out presigned GET
// URLs that the model provider can read until they expire.
type S3Uploader struct {
	putter    objectPutter
	presigner objectPresigner
	bucket    string
	expiry    time.Duration
}

func NewS3Uploader(ctx context.Context, region, bucket string, expiry time.Duration) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return newS3Uploader(client, s3.NewPresignClient(client), bucket, expiry), nil
}

func newS3Uploader(putter objectPutter, presigner objectPresigner, bucket string, expiry time.Duration) *S3Uploader {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &S3Uploader{putter: putter, presigner: presigner, bucket: bucket, expiry: expiry}
}

// ObjectKey namespaces uploads so repeated file names never collide.
func ObjectKey(fileName string) string {
	return path.Join("smile-uploads", uuid.NewString(), path.Base(fileName))
}

func (u *S3Uploader) Upload(ctx context.Context, data []byte, contentType, fileName string) (string, error) {
	key := ObjectKey(fileName)

	_, err := u.putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}

	request, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}

	return request.URL, nil
}
