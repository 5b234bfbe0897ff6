package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/anonqr/identity-service/internal/core/domain"
	"github.com/anonqr/identity-service/internal/core/ports"
)

// maxIDAttempts bounds the retry-until-unique loop for private ids.
const maxIDAttempts = 32

type UserService struct {
	repo      ports.UserRepository
	encoder   ports.QREncoder
	artifacts ports.ArtifactStore
	exporter  ports.AuditExporter
	logger    zerolog.Logger

	now      func() time.Time
	newID    func() (string, error)
	newToken func() (string, error)
}

func NewUserService(
	repo ports.UserRepository,
	encoder ports.QREncoder,
	artifacts ports.ArtifactStore,
	exporter ports.AuditExporter,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		repo:      repo,
		encoder:   encoder,
		artifacts: artifacts,
		exporter:  exporter,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     generatePrivateID,
		newToken:  generateToken,
	}
}

// Register issues a fresh id and token, stores the record and its QR image,
// and refreshes the audit export. The token only leaves through QRURL.
func (s *UserService) Register(ctx context.Context, input ports.RegisterInput) (*ports.RegisterResult, error) {
	token, err := s.newToken()
	if err != nil {
		return nil, err
	}

	issued, err := s.createUnique(ctx, input.BaseURL, token)
	if err != nil {
		return nil, err
	}
	user := issued.user

	// From here on the record is committed; the export must follow it even
	// when the artifact write fails.
	if err := s.artifacts.Save(ctx, user.QRFile, issued.png); err != nil {
		saveErr := fmt.Errorf("register: save qr: %w", err)
		if err := s.export(ctx); err != nil {
			return nil, errors.Join(saveErr, fmt.Errorf("register: %w", err))
		}
		return nil, saveErr
	}
	if err := s.export(ctx); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.logger.Info().Str("id", user.ID).Str("qr_file", user.QRFile).Msg("identity registered")

	return &ports.RegisterResult{
		ID:        user.ID,
		QRURL:     issued.qrURL,
		QRPNG:     issued.png,
		QRFile:    user.QRFile,
		CreatedAt: user.CreatedAt,
	}, nil
}

type issuedIdentity struct {
	user  *domain.User
	qrURL string
	png   []byte
}

// createUnique draws ids until the repository accepts one. The QR code is
// encoded for each candidate before insert so an encoding failure leaves the
// store untouched.
func (s *UserService) createUnique(ctx context.Context, baseURL, token string) (*issuedIdentity, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, err
		}

		qrURL := VerificationURL(baseURL, id, token)
		png, err := s.encoder.Encode(ctx, qrURL)
		if err != nil {
			s.logger.Error().Err(err).Str("id", id).Msg("qr encoding failed")
			return nil, fmt.Errorf("register: encode qr: %w", err)
		}

		user := &domain.User{
			ID:        id,
			Token:     token,
			QRFile:    qrFileName(id),
			CreatedAt: s.now(),
		}
		err = s.repo.Create(ctx, user)
		if err == nil {
			return &issuedIdentity{user: user, qrURL: qrURL, png: png}, nil
		}
		if !errors.Is(err, domain.ErrUserExists) {
			return nil, fmt.Errorf("register: create user: %w", err)
		}
		s.logger.Debug().Int("attempt", attempt+1).Msg("private id collision, retrying")
	}
	return nil, domain.ErrIDSpaceExhausted
}

func (s *UserService) SetEmail(ctx context.Context, id, email string) error {
	return s.update(ctx, domain.FieldEmail, id, email)
}

func (s *UserService) SetPseudo(ctx context.Context, id, pseudo string) error {
	return s.update(ctx, domain.FieldPseudo, id, pseudo)
}

// update does not check the token; knowing the id is enough.
func (s *UserService) update(ctx context.Context, field domain.ProfileField, id, value string) error {
	value = strings.TrimSpace(value)
	if id == "" || value == "" {
		return fmt.Errorf("%w: id and %s are required", domain.ErrInvalidInput, field)
	}

	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("set %s: %w", field, err)
	}

	user.Set(field, value, s.now())
	if err := s.repo.Put(ctx, user); err != nil {
		return fmt.Errorf("set %s: %w", field, err)
	}
	if err := s.export(ctx); err != nil {
		return fmt.Errorf("set %s: %w", field, err)
	}

	s.logger.Info().Str("id", id).Str("field", string(field)).Msg("profile updated")
	return nil
}

// Verify checks the token carried by a scanned QR code and returns the
// profile location on success.
func (s *UserService) Verify(ctx context.Context, id, token, baseURL string) (*ports.RedirectTarget, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(user.Token)) != 1 {
		s.logger.Warn().Str("id", id).Msg("qr verification rejected")
		return nil, domain.ErrInvalidToken
	}

	return &ports.RedirectTarget{Location: ProfileURL(baseURL, id)}, nil
}

func (s *UserService) GetProfile(ctx context.Context, id string) (*ports.Profile, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &ports.Profile{
		ID:     user.ID,
		Pseudo: user.Pseudo,
		Email:  user.Email,
		QRFile: user.QRFile,
	}, nil
}

// QRImage returns the PNG stored at registration.
func (s *UserService) QRImage(ctx context.Context, id string) ([]byte, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("qr image: %w", err)
	}
	if user.QRFile == "" {
		return nil, domain.ErrArtifactNotFound
	}
	png, err := s.artifacts.Load(ctx, user.QRFile)
	if err != nil {
		return nil, fmt.Errorf("qr image: %w", err)
	}
	return png, nil
}

func (s *UserService) export(ctx context.Context) error {
	users, err := s.repo.All(ctx)
	if err != nil {
		return fmt.Errorf("list users for export: %w", err)
	}
	if err := s.exporter.Export(ctx, users); err != nil {
		return fmt.Errorf("audit export: %w", err)
	}
	return nil
}

func qrFileName(id string) string {
	return "qr_" + strings.ReplaceAll(id, "-", "") + ".png"
}

// VerificationURL is the URL encoded in the QR code.
func VerificationURL(baseURL, id, token string) string {
	return baseURL + "/r/" + url.PathEscape(id) + "?token=" + url.QueryEscape(token)
}

// ProfileURL is the HTML profile page for id.
func ProfileURL(baseURL, id string) string {
	return baseURL + "/app/profile/" + url.PathEscape(id)
}

// QRImageURL is where the stored QR PNG for id is served.
func QRImageURL(baseURL, id string) string {
	return baseURL + "/qr/" + url.PathEscape(id) + ".png"
}
