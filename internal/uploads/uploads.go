package uploads

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var ErrInvalidKey = errors.New("invalid object key")

// Service issues presigned URLs so image messages carry an object key
// instead of bytes. Object storage itself stays external to the core.
type Service interface {
	PresignUpload(ctx context.Context, contentType, filename string) (key, url string, err error)
	PresignDownload(ctx context.Context, key string) (url string, err error)
}

type S3Service struct {
	bucket    string
	presigner *s3.PresignClient
}

func NewS3Service(bucket string, presigner *s3.PresignClient) *S3Service {
	return &S3Service{bucket: bucket, presigner: presigner}
}

func (s *S3Service) PresignUpload(ctx context.Context, contentType, filename string) (string, string, error) {
	key := "uploads/" + uuid.NewString()

	req := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"original-filename": filename,
		},
	}

	ps, err := s.presigner.PresignPutObject(ctx, req, func(po *s3.PresignOptions) {
		po.Expires = 15 * time.Minute
	})
	if err != nil {
		return "", "", err
	}

	return key, ps.URL, nil
}

func (s *S3Service) PresignDownload(ctx context.Context, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	req := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}

	ps, err := s.presigner.PresignGetObject(ctx, req, func(po *s3.PresignOptions) {
		po.Expires = 15 * time.Minute
	})
	if err != nil {
		return "", err
	}

	return ps.URL, nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !strings.HasPrefix(key, "uploads/") {
		return ErrInvalidKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
