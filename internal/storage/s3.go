package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "lingobridge/internal/config"
)

// S3Service backs the attendee-avatar / meeting-recording upload path on
// the REST surface. The translation pipeline never calls this directly.
type S3Service struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	region        string
	presignExpiry time.Duration
}

// PresignedURL is a client-facing upload target.
type PresignedURL struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresAt string `json:"expires_at"`
}

// NewS3Service builds the S3 client from static credentials. Returns an
// error when the configuration is incomplete, so callers can treat the
// upload path as optional the same way Redis/LiveKit are optional.
func NewS3Service(cfg appconfig.S3Config) (*S3Service, error) {
	if cfg.BucketName == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("S3 configuration is incomplete")
	}

	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Service{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucketName:    cfg.BucketName,
		region:        cfg.Region,
		presignExpiry: cfg.PresignExpiry,
	}, nil
}

// GenerateUploadURL returns a presigned PUT URL for an attendee avatar or
// meeting recording, keyed by meeting and attendee so objects never
// collide across meetings.
func (s *S3Service) GenerateUploadURL(meetingID, attendeeID, fileName, contentType string) (*PresignedURL, error) {
	key := fmt.Sprintf("meetings/%s/%s/%s-%s", meetingID, attendeeID, uuid.New().String(), sanitizeFileName(fileName))

	expiresAt := time.Now().Add(s.presignExpiry)
	presignResult, err := s.presignClient.PresignPutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.presignExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return &PresignedURL{
		URL:       presignResult.URL,
		Key:       key,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

// GetPublicURL returns the public URL for an object in a public bucket.
func (s *S3Service) GetPublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucketName, s.region, key)
}

func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	invalidChars := []string{"<", ">", ":", "\"", "/", "\\", "|", "?", "*"}
	for _, char := range invalidChars {
		name = strings.ReplaceAll(name, char, "")
	}
	if len(name) > 200 {
		ext := filepath.Ext(name)
		name = name[:200-len(ext)] + ext
	}
	return name
}
