package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"voyago/backend/internal/config"
)

// ErrUnsupportedContentType is returned for uploads that are not images.
var ErrUnsupportedContentType = errors.New("only jpeg, png and webp images can be uploaded")

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Upload is a presigned upload target.
type Upload struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// IS3Storage defines the interface for S3 operations.
type IS3Storage interface {
	PresignOnboardingPhoto(ctx context.Context, userID, contentType string) (*Upload, error)
	PresignListingImage(ctx context.Context, userID, listingID, contentType string) (*Upload, error)
}

// presigner is the part of the S3 presign client used here.
type presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error)
}

// PresignedRequest is the subset of the AWS presign result that callers need.
type PresignedRequest struct {
	URL string
}

type awsPresigner struct {
	client *s3.PresignClient
}

func (p awsPresigner) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	req, err := p.client.PresignPutObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &PresignedRequest{URL: req.URL}, nil
}

type s3Storage struct {
	cfg     *config.Config
	presign presigner
	log     *zap.Logger
}

// NewS3Storage creates a new S3 storage service.
func NewS3Storage(ctx context.Context, cfg *config.Config, log *zap.Logger) (IS3Storage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(ctx,
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	return newS3Storage(cfg, awsPresigner{client: s3.NewPresignClient(s3Client)}, log), nil
}

func newS3Storage(cfg *config.Config, p presigner, log *zap.Logger) *s3Storage {
	return &s3Storage{cfg: cfg, presign: p, log: log}
}

// PresignOnboardingPhoto returns an upload URL for a host's onboarding photo.
func (s *s3Storage) PresignOnboardingPhoto(ctx context.Context, userID, contentType string) (*Upload, error) {
	return s.presignImage(ctx, path.Join("onboarding", userID), contentType)
}

// PresignListingImage returns an upload URL for a listing image.
func (s *s3Storage) PresignListingImage(ctx context.Context, userID, listingID, contentType string) (*Upload, error) {
	return s.presignImage(ctx, path.Join("listings", userID, listingID), contentType)
}

func (s *s3Storage) presignImage(ctx context.Context, prefix, contentType string) (*Upload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, ErrUnsupportedContentType
	}
	objectKey := path.Join("uploads", prefix, uuid.NewString()+ext)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.cfg.UploadURLTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}

	s.log.Debug("Generated presigned upload URL", zap.String("key", objectKey))
	return &Upload{URL: req.URL, Key: objectKey}, nil
}
