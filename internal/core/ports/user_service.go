package ports

import (
	"context"
	"time"
)

// RegisterInput carries the request-scoped data needed to issue an identity.
type RegisterInput struct {
	// BaseURL is the absolute origin embedded in the QR code, without a
	// trailing slash.
	BaseURL string
}

// RegisterResult is returned after issuing a new identity.
// QRURL embeds the token; the transport layer decides how much of it to show.
type RegisterResult struct {
	ID        string
	QRURL     string
	QRPNG     []byte
	QRFile    string
	CreatedAt time.Time
}

// RedirectTarget is where a successfully verified QR scan lands.
type RedirectTarget struct {
	Location string
}

// Profile is the client-visible view of a user. It never carries the token.
type Profile struct {
	ID     string
	Pseudo *string
	Email  *string
	QRFile string
}

// UserService defines the identity use cases.
type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*RegisterResult, error)
	SetEmail(ctx context.Context, id, email string) error
	SetPseudo(ctx context.Context, id, pseudo string) error
	Verify(ctx context.Context, id, token, baseURL string) (*RedirectTarget, error)
	GetProfile(ctx context.Context, id string) (*Profile, error)
	QRImage(ctx context.Context, id string) ([]byte, error)
}
