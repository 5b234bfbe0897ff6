package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/anonqr/identity-service/internal/core/domain"
	"github.com/anonqr/identity-service/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stubs
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users  map[string]*domain.User
	order  []string
	putErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func (r *stubUserRepo) Create(_ context.Context, u *domain.User) error {
	if _, exists := r.users[u.ID]; exists {
		return domain.ErrUserExists
	}
	r.users[u.ID] = u.Clone()
	r.order = append(r.order, u.ID)
	return nil
}

func (r *stubUserRepo) Get(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *stubUserRepo) Put(_ context.Context, u *domain.User) error {
	if r.putErr != nil {
		return r.putErr
	}
	if _, ok := r.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	r.users[u.ID] = u.Clone()
	return nil
}

func (r *stubUserRepo) All(_ context.Context) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.users[id].Clone())
	}
	return out, nil
}

type stubEncoder struct {
	content []string
	err     error
}

func (e *stubEncoder) Encode(_ context.Context, content string) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.content = append(e.content, content)
	return []byte("png:" + content), nil
}

type stubArtifacts struct {
	files   map[string][]byte
	saveErr error
}

func (a *stubArtifacts) Save(_ context.Context, name string, data []byte) error {
	if a.saveErr != nil {
		return a.saveErr
	}
	a.files[name] = data
	return nil
}

func (a *stubArtifacts) Load(_ context.Context, name string) ([]byte, error) {
	b, ok := a.files[name]
	if !ok {
		return nil, domain.ErrArtifactNotFound
	}
	return b, nil
}

type stubExporter struct {
	calls int
	last  []*domain.User
}

func (e *stubExporter) Export(_ context.Context, users []*domain.User) error {
	e.calls++
	e.last = users
	return nil
}

type fixture struct {
	svc       *UserService
	repo      *stubUserRepo
	encoder   *stubEncoder
	artifacts *stubArtifacts
	exporter  *stubExporter
}

// newFixture wires a service whose clock advances one second per call.
func newFixture() *fixture {
	f := &fixture{
		repo:      newStubUserRepo(),
		encoder:   &stubEncoder{},
		artifacts: &stubArtifacts{files: make(map[string][]byte)},
		exporter:  &stubExporter{},
	}
	f.svc = NewUserService(f.repo, f.encoder, f.artifacts, f.exporter, zerolog.Nop())

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return f
}

func (f *fixture) register(t *testing.T) *ports.RegisterResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), ports.RegisterInput{BaseURL: "https://qr.example.com"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	return res
}

var idPattern = regexp.MustCompile(`^\d{3}-\d{3}-\d{3}-\d{3}$`)

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestRegister_Success(t *testing.T) {
	f := newFixture()
	res := f.register(t)

	if !idPattern.MatchString(res.ID) {
		t.Fatalf("id %q does not match DDD-DDD-DDD-DDD", res.ID)
	}

	stored := f.repo.users[res.ID]
	if stored == nil {
		t.Fatalf("user not persisted")
	}
	if stored.Email != nil || stored.Pseudo != nil {
		t.Fatalf("expected null email/pseudo, got %v/%v", stored.Email, stored.Pseudo)
	}
	if len(stored.Token) != tokenLength {
		t.Fatalf("unexpected token length %d", len(stored.Token))
	}

	want := "https://qr.example.com/r/" + res.ID + "?token=" + stored.Token
	if res.QRURL != want {
		t.Fatalf("expected qr url %q, got %q", want, res.QRURL)
	}
	if len(f.encoder.content) != 1 || f.encoder.content[0] != want {
		t.Fatalf("encoder called with %v", f.encoder.content)
	}

	wantFile := "qr_" + strings.ReplaceAll(res.ID, "-", "") + ".png"
	if res.QRFile != wantFile || stored.QRFile != wantFile {
		t.Fatalf("unexpected qr file %q / %q", res.QRFile, stored.QRFile)
	}
	if string(f.artifacts.files[wantFile]) != "png:"+want {
		t.Fatalf("artifact not saved")
	}
	if string(res.QRPNG) != "png:"+want {
		t.Fatalf("unexpected png bytes")
	}

	if f.exporter.calls != 1 || len(f.exporter.last) != 1 {
		t.Fatalf("expected one export with one user, got %d calls", f.exporter.calls)
	}
}

func TestRegister_UniqueIDs(t *testing.T) {
	f := newFixture()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		res := f.register(t)
		if seen[res.ID] {
			t.Fatalf("duplicate id %s", res.ID)
		}
		seen[res.ID] = true
	}
	if f.exporter.calls != 50 || len(f.exporter.last) != 50 {
		t.Fatalf("export out of sync: %d calls, %d users", f.exporter.calls, len(f.exporter.last))
	}
}

func TestRegister_RetriesOnCollision(t *testing.T) {
	f := newFixture()
	f.repo.users["111-111-111-111"] = &domain.User{ID: "111-111-111-111", Token: "x"}

	ids := []string{"111-111-111-111", "111-111-111-111", "222-222-222-222"}
	f.svc.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	res := f.register(t)
	if res.ID != "222-222-222-222" {
		t.Fatalf("expected fresh id after collisions, got %s", res.ID)
	}
	if f.repo.users["111-111-111-111"].Token != "x" {
		t.Fatalf("existing record was overwritten")
	}
}

func TestRegister_IDSpaceExhausted(t *testing.T) {
	f := newFixture()
	f.repo.users["000-000-000-000"] = &domain.User{ID: "000-000-000-000"}
	calls := 0
	f.svc.newID = func() (string, error) {
		calls++
		return "000-000-000-000", nil
	}

	_, err := f.svc.Register(context.Background(), ports.RegisterInput{BaseURL: "http://x"})
	if !errors.Is(err, domain.ErrIDSpaceExhausted) {
		t.Fatalf("expected ErrIDSpaceExhausted, got %v", err)
	}
	if calls != maxIDAttempts {
		t.Fatalf("expected %d attempts, got %d", maxIDAttempts, calls)
	}
}

func TestRegister_EncoderFailure(t *testing.T) {
	f := newFixture()
	f.encoder.err = errors.New("boom")

	if _, err := f.svc.Register(context.Background(), ports.RegisterInput{BaseURL: "http://x"}); err == nil {
		t.Fatalf("expected error from encoder failure")
	}
	if len(f.repo.users) != 0 {
		t.Fatalf("store should be untouched when encoding fails, has %d records", len(f.repo.users))
	}
	if f.exporter.calls != 0 {
		t.Fatalf("export should not run when nothing was stored")
	}
}

func TestRegister_ArtifactFailureKeepsExportInStep(t *testing.T) {
	f := newFixture()
	f.artifacts.saveErr = errors.New("disk full")

	_, err := f.svc.Register(context.Background(), ports.RegisterInput{BaseURL: "http://x"})
	if !errors.Is(err, f.artifacts.saveErr) {
		t.Fatalf("expected artifact error, got %v", err)
	}
	if len(f.repo.users) != 1 {
		t.Fatalf("expected the committed record to stay, got %d records", len(f.repo.users))
	}
	if f.exporter.calls != 1 || len(f.exporter.last) != len(f.repo.users) {
		t.Fatalf("export out of step with store: %d calls, %d exported, %d stored",
			f.exporter.calls, len(f.exporter.last), len(f.repo.users))
	}
}

// ---------------------------------------------------------------------------
// SetEmail / SetPseudo
// ---------------------------------------------------------------------------

func TestSetPseudo_TrimsAndStamps(t *testing.T) {
	f := newFixture()
	res := f.register(t)

	if err := f.svc.SetPseudo(context.Background(), res.ID, "  Bob  "); err != nil {
		t.Fatalf("SetPseudo returned error: %v", err)
	}

	u := f.repo.users[res.ID]
	if u.Pseudo == nil || *u.Pseudo != "Bob" {
		t.Fatalf("expected trimmed pseudo, got %v", u.Pseudo)
	}
	if u.UpdatedAt == nil || !u.UpdatedAt.After(u.CreatedAt) {
		t.Fatalf("expected updatedAt newer than createdAt, got %v vs %v", u.UpdatedAt, u.CreatedAt)
	}
	if f.exporter.calls != 2 {
		t.Fatalf("expected export after update, got %d calls", f.exporter.calls)
	}
}

func TestSetEmail_Success(t *testing.T) {
	f := newFixture()
	res := f.register(t)

	if err := f.svc.SetEmail(context.Background(), res.ID, "bob@example.com\n"); err != nil {
		t.Fatalf("SetEmail returned error: %v", err)
	}
	p, err := f.svc.GetProfile(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("GetProfile returned error: %v", err)
	}
	if p.Email == nil || *p.Email != "bob@example.com" {
		t.Fatalf("unexpected email %v", p.Email)
	}
	if p.Pseudo != nil {
		t.Fatalf("pseudo should still be null")
	}
}

func TestSetEmail_Validation(t *testing.T) {
	f := newFixture()
	res := f.register(t)

	cases := []struct {
		name, id, value string
	}{
		{"missing id", "", "a@b.c"},
		{"missing value", res.ID, ""},
		{"blank value", res.ID, "   "},
	}
	for _, tc := range cases {
		if err := f.svc.SetEmail(context.Background(), tc.id, tc.value); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
		if err := f.svc.SetPseudo(context.Background(), tc.id, tc.value); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput for pseudo, got %v", tc.name, err)
		}
	}
}

func TestSetPseudo_UnknownUser(t *testing.T) {
	f := newFixture()
	if err := f.svc.SetPseudo(context.Background(), "999-999-999-999", "Bob"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if f.exporter.calls != 0 {
		t.Fatalf("export should not run for unknown user")
	}
}

func TestSetPseudo_StoreFailure(t *testing.T) {
	f := newFixture()
	res := f.register(t)
	f.repo.putErr = errors.New("disk full")

	err := f.svc.SetPseudo(context.Background(), res.ID, "Bob")
	if err == nil || errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected opaque store error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Verify
// ---------------------------------------------------------------------------

func TestVerify(t *testing.T) {
	f := newFixture()
	res := f.register(t)
	token := f.repo.users[res.ID].Token

	target, err := f.svc.Verify(context.Background(), res.ID, token, "https://qr.example.com")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if target.Location != "https://qr.example.com/app/profile/"+res.ID {
		t.Fatalf("unexpected redirect %q", target.Location)
	}

	for _, bad := range []string{"", "wrong", token[:len(token)-1], token + "x", strings.ToUpper(token)} {
		if bad == token {
			continue
		}
		if _, err := f.svc.Verify(context.Background(), res.ID, bad, ""); !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", bad, err)
		}
	}

	if _, err := f.svc.Verify(context.Background(), "000-000-000-000", token, ""); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Profile / QR image
// ---------------------------------------------------------------------------

func TestGetProfile_Idempotent(t *testing.T) {
	f := newFixture()
	res := f.register(t)
	_ = f.svc.SetPseudo(context.Background(), res.ID, "Bob")

	p1, err := f.svc.GetProfile(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("GetProfile returned error: %v", err)
	}
	p2, _ := f.svc.GetProfile(context.Background(), res.ID)

	if p1.ID != p2.ID || *p1.Pseudo != *p2.Pseudo || p1.QRFile != p2.QRFile || p1.Email != nil || p2.Email != nil {
		t.Fatalf("profiles differ: %+v vs %+v", p1, p2)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.GetProfile(context.Background(), "nope"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestQRImage(t *testing.T) {
	f := newFixture()
	res := f.register(t)

	png, err := f.svc.QRImage(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("QRImage returned error: %v", err)
	}
	if string(png) != string(res.QRPNG) {
		t.Fatalf("served png differs from registered png")
	}

	delete(f.artifacts.files, res.QRFile)
	if _, err := f.svc.QRImage(context.Background(), res.ID); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound, got %v", err)
	}
}

func TestURLBuilders(t *testing.T) {
	if got := VerificationURL("http://h", "1 2", "a+b"); got != "http://h/r/1%202?token=a%2Bb" {
		t.Fatalf("unexpected verification url %q", got)
	}
	if got := ProfileURL("http://h", "123-456-789-012"); got != "http://h/app/profile/123-456-789-012" {
		t.Fatalf("unexpected profile url %q", got)
	}
	if got := QRImageURL("", "123-456-789-012"); got != "/qr/123-456-789-012.png" {
		t.Fatalf("unexpected qr url %q", got)
	}
}
