package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// mediaExtensions lists the upload content types accepted for match media.
var mediaExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/heic":      "heic",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"video/webm":      "webm",
}

// ObjectPresigner is satisfied by *s3.PresignClient.
type ObjectPresigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type MediaUpload struct {
	ObjectKey string    `json:"object_key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type MediaService interface {
	CreateUploadURL(ctx context.Context, userID, playerID, contentType string) (*MediaUpload, error)
}

type mediaService struct {
	presigner ObjectPresigner
	bucket    string
	expires   time.Duration
	access    AccessService
	now       func() time.Time
	logger    zerolog.Logger
}

func NewMediaService(presigner ObjectPresigner, bucket string, expires time.Duration, access AccessService, now func() time.Time, logger zerolog.Logger) MediaService {
	return &mediaService{
		presigner: presigner,
		bucket:    bucket,
		expires:   expires,
		access:    access,
		now:       now,
		logger:    logger.With().Str("service", "MediaService").Logger(),
	}
}

// CreateUploadURL returns a presigned PUT for a new media object of the
// player. The guard runs before anything is signed.
func (s *mediaService) CreateUploadURL(ctx context.Context, userID, playerID, contentType string) (*MediaUpload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := mediaExtensions[contentType]
	if !ok {
		return nil, ErrUnsupportedMedia
	}
	if _, err := uuid.Parse(playerID); err != nil {
		return nil, ErrAccessDenied
	}
	if !s.access.CanAccessPlayer(ctx, userID, playerID) {
		return nil, ErrAccessDenied
	}

	key := fmt.Sprintf("players/%s/media/%s.%s", playerID, uuid.NewString(), ext)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.expires))
	if err != nil {
		s.logger.Error().Err(err).Str("object_key", key).Msg("Failed to generate presigned PUT URL")
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return &MediaUpload{ObjectKey: key, UploadURL: req.URL, ExpiresAt: s.now().Add(s.expires).UTC()}, nil
}
