package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	appconfig "sports-buddy-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const uploadURLExpiry = 5 * time.Minute

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type photoPresigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type photoObjects interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// UploadService signs direct uploads of profile photos to the storage bucket
// and records a photo on the profile once its object exists
type UploadService struct {
	profiles   ProfileStore
	presigner  photoPresigner
	objects    photoObjects
	bucket     string
	region     string
	publicBase string
}

// NewUploadService creates a new upload service
func NewUploadService(ctx context.Context, profiles ProfileStore, cfg appconfig.AWSConfig) (*UploadService, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &UploadService{
		profiles:   profiles,
		presigner:  s3.NewPresignClient(client),
		objects:    client,
		bucket:     cfg.S3Bucket,
		region:     cfg.Region,
		publicBase: strings.TrimSuffix(cfg.PublicBase, "/"),
	}, nil
}

// UploadRequest asks for a signed photo upload URL
type UploadRequest struct {
	ContentType string `json:"content_type"`
}

// UploadResponse carries the signed URL and the object key to confirm once
// the upload finished
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	PhotoURL  string `json:"photo_url"`
	ExpiresIn int    `json:"expires_in"`
}

// ConfirmPhotoRequest names an uploaded object to use as the profile photo
type ConfirmPhotoRequest struct {
	Key string `json:"key"`
}

// PhotoResponse is the profile photo after a confirmed upload
type PhotoResponse struct {
	PhotoURL string `json:"photo_url"`
}

// PresignPhoto signs a PUT for a new profile photo. The profile keeps its
// current photo until ConfirmPhoto is called for the returned key.
func (s *UploadService) PresignPhoto(ctx context.Context, userID, contentType string) (*UploadResponse, error) {
	ext, ok := photoExtensions[contentType]
	if !ok {
		return nil, validationError("Invalid File", "Photos must be JPEG, PNG or WebP")
	}

	key := path.Join(photoPrefix(userID), uuid.New().String()+ext)

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadURLExpiry
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to presign upload")
		return nil, remoteError(err, "Upload Failed", "Could not prepare photo upload")
	}

	return &UploadResponse{
		UploadURL: req.URL,
		Key:       key,
		PhotoURL:  s.publicURL(key),
		ExpiresIn: int(uploadURLExpiry.Seconds()),
	}, nil
}

// ConfirmPhoto records an uploaded object as the user's profile photo. The key
// must be one signed for this user and the object must exist in the bucket.
func (s *UploadService) ConfirmPhoto(ctx context.Context, userID, key string) (*PhotoResponse, error) {
	if !ownsPhotoKey(userID, key) {
		return nil, validationError("Invalid File", "That upload does not belong to you")
	}

	_, err := s.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NotFound
		if errors.As(err, &missing) {
			return nil, validationError("Upload Missing", "The photo has not finished uploading")
		}
		log.Error().Err(err).Str("user_id", userID).Str("key", key).Msg("Failed to check uploaded photo")
		return nil, remoteError(err, "Upload Failed", "Could not check the uploaded photo")
	}

	photoURL := s.publicURL(key)
	if err := s.profiles.UpdatePhotoURL(ctx, userID, photoURL); err != nil {
		return nil, remoteError(err, "Upload Failed", "Could not update profile photo")
	}

	log.Info().Str("user_id", userID).Str("key", key).Msg("Profile photo updated")
	return &PhotoResponse{PhotoURL: photoURL}, nil
}

func photoPrefix(userID string) string {
	return path.Join("profiles", userID)
}

func ownsPhotoKey(userID, key string) bool {
	if userID == "" || path.Clean(key) != key || path.Dir(key) != photoPrefix(userID) {
		return false
	}
	ext := path.Ext(key)
	for _, allowed := range photoExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (s *UploadService) publicURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
