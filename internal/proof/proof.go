// Package proof stores payment proof images and hands back the URL the
// confirmation record points at.
package proof

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Storage stores one object under key and returns its public URL.
type Storage interface {
	Store(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// fallbackStorage tries a remote storage first, then the local one.
type fallbackStorage struct {
	primary Storage
	local   Storage
	logger  zerolog.Logger
}

// NewFallbackStorage creates a storage that tries primary first and falls back
// to local. If primary is nil, it only uses local.
func NewFallbackStorage(primary, local Storage, logger zerolog.Logger) Storage {
	return &fallbackStorage{
		primary: primary,
		local:   local,
		logger:  logger.With().Str("component", "fallback-proof-storage").Logger(),
	}
}

// Store writes to the primary storage, falling back to local storage on error.
func (s *fallbackStorage) Store(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if s.primary != nil {
		url, err := s.primary.Store(ctx, key, contentType, data)
		if err == nil {
			return url, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		s.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("failed to store proof remotely, falling back to local storage")
	} else {
		s.logger.Debug().Msg("remote proof storage not configured, using local storage")
	}

	url, err := s.local.Store(ctx, key, contentType, data)
	if err != nil {
		return "", fmt.Errorf("failed to store proof locally: %w", err)
	}
	return url, nil
}
