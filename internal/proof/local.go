package proof

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// localStorage writes proofs below a directory served at baseURL.
type localStorage struct {
	dir     string
	baseURL string
	logger  zerolog.Logger
}

// NewLocalStorage creates a file-system proof storage.
func NewLocalStorage(dir, baseURL string, logger zerolog.Logger) Storage {
	return &localStorage{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With().Str("component", "local-proof-storage").Logger(),
	}
}

func (s *localStorage) Store(ctx context.Context, key, contentType string, data []byte) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" {
		return "", fmt.Errorf("invalid proof key %q", key)
	}

	target := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		s.logger.Error().Err(err).Str("path", target).Msg("failed to create proof directory")
		return "", fmt.Errorf("failed to create proof directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		s.logger.Error().Err(err).Str("path", target).Msg("failed to write proof file")
		return "", fmt.Errorf("failed to write proof file %s: %w", target, err)
	}

	s.logger.Debug().Str("path", target).Int("bytes", len(data)).Msg("proof stored locally")
	return s.baseURL + "/" + clean, nil
}
