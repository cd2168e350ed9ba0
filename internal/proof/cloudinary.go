package proof

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	cldconfig "github.com/cloudinary/cloudinary-go/v2/config"
	"github.com/rs/zerolog"
)

type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// cloudinaryStorage implements Storage with Cloudinary image uploads.
type cloudinaryStorage struct {
	uploader uploadAPI
	folder   string
	logger   zerolog.Logger
}

// NewCloudinaryStorage creates a Cloudinary-backed proof storage.
func NewCloudinaryStorage(cloudName, apiKey, apiSecret, folder string, logger zerolog.Logger) (Storage, error) {
	cfg, err := cldconfig.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to configure cloudinary: %w", err)
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary uploader: %w", err)
	}
	return newCloudinaryStorage(up, folder, logger), nil
}

func newCloudinaryStorage(up uploadAPI, folder string, logger zerolog.Logger) *cloudinaryStorage {
	return &cloudinaryStorage{
		uploader: up,
		folder:   folder,
		logger:   logger.With().Str("component", "cloudinary-proof-storage").Logger(),
	}
}

func (s *cloudinaryStorage) Store(ctx context.Context, key, contentType string, data []byte) (string, error) {
	publicID := strings.TrimSuffix(key, path.Ext(key))
	overwrite := false

	result, err := s.uploader.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     publicID,
		ResourceType: "image",
		Overwrite:    &overwrite,
	})
	if err == nil && result.Error.Message != "" {
		err = errors.New(result.Error.Message)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("public_id", publicID).Msg("failed to upload proof to cloudinary")
		return "", fmt.Errorf("failed to upload proof to cloudinary: %w", err)
	}
	return result.SecureURL, nil
}
