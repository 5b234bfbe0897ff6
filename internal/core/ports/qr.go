package ports

import (
	"context"

	"github.com/anonqr/identity-service/internal/core/domain"
)

// QREncoder renders content as a PNG QR code.
type QREncoder interface {
	Encode(ctx context.Context, content string) ([]byte, error)
}

// ArtifactStore keeps the generated QR images.
type ArtifactStore interface {
	Save(ctx context.Context, name string, data []byte) error
	// Load returns domain.ErrArtifactNotFound when nothing is stored under name.
	Load(ctx context.Context, name string) ([]byte, error)
}

// AuditExporter rewrites the operator-only dump of all records.
type AuditExporter interface {
	Export(ctx context.Context, users []*domain.User) error
}
