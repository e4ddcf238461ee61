// Package store persists completed debate transcripts. Live session state is
// in-memory only; the archive receives a debate once the judge has ruled.
package store

import (
	"context"

	"github.com/prysmai/debate-arena/internal/domain"
)

// Repository is the transcript archive interface.
type Repository interface {
	// SaveTranscript stores the record of a completed debate. Saving the
	// same session id twice replaces the earlier record.
	SaveTranscript(ctx context.Context, t *domain.Transcript) error

	// GetTranscript retrieves an archived debate, or nil if none exists.
	GetTranscript(ctx context.Context, sessionID string) (*domain.Transcript, error)

	// Ping verifies the archive is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
