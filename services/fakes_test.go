package services

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"photohunter/models"
	"photohunter/repository"
)

type sentMail struct {
	to   string
	link string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendVerificationEmail(_ context.Context, to models.User, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to.Email, link: link})
	return m.err
}

func (m *fakeMailer) mails() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("Bad verification link %q: %v", link, err)
	}
	return u.Query().Get("token")
}

type fakeImageHost struct {
	mu       sync.Mutex
	next     models.Picture
	uploaded [][]byte
	deleted  []string
	err      error
}

func (h *fakeImageHost) UploadImage(_ context.Context, u Upload) (models.Picture, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return models.Picture{}, h.err
	}
	body, err := io.ReadAll(u.Body)
	if err != nil {
		return models.Picture{}, err
	}
	h.uploaded = append(h.uploaded, body)
	return h.next, nil
}

func (h *fakeImageHost) DeleteImage(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, id)
	return nil
}

type fakeOAuth struct {
	profile models.GoogleProfile
	tokens  models.GoogleTokens
	err     error
	codes   []string
}

func (o *fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (o *fakeOAuth) Exchange(_ context.Context, code string) (models.GoogleProfile, models.GoogleTokens, error) {
	o.codes = append(o.codes, code)
	return o.profile, o.tokens, o.err
}

// failingLocations refuses every insert.
type failingLocations struct {
	repository.LocationRepository
}

func (failingLocations) Create(context.Context, *models.Location) error {
	return errors.New("insert refused")
}

type fakeGeoIndex struct {
	ids []string
	err error
}

func (g *fakeGeoIndex) Add(context.Context, models.Location) error { return nil }

func (g *fakeGeoIndex) SearchBox(context.Context, models.BoundingBox) ([]string, error) {
	return g.ids, g.err
}

type testEnv struct {
	store     *repository.MemoryStore
	tokens    *TokenService
	mailer    *fakeMailer
	images    *fakeImageHost
	oauth     *fakeOAuth
	users     *UserService
	locations *LocationService
}

func newTestEnv(t *testing.T, requireVerification bool) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  repository.NewMemoryStore(),
		tokens: NewTokenService("testSecret", 10*time.Hour),
		mailer: &fakeMailer{},
		images: &fakeImageHost{next: models.Picture{ID: "pic-1", URL: "https://images.example.com/pic-1.jpg"}},
		oauth:  &fakeOAuth{},
	}
	env.users = NewUserService(UserServiceDeps{
		Users:                    env.store.Users(),
		Locations:                env.store.Locations(),
		Tokens:                   env.tokens,
		Mailer:                   env.mailer,
		OAuth:                    env.oauth,
		RequireEmailVerification: requireVerification,
		BaseURL:                  "http://localhost:8080/",
	})
	env.locations = NewLocationService(LocationServiceDeps{
		Locations:     env.store.Locations(),
		Pictures:      env.store.Pictures(),
		Users:         env.store.Users(),
		Images:        env.images,
		BoxHalfSideKm: 3000,
	})
	t.Cleanup(env.users.Wait)
	return env
}

// register creates an enabled account and returns it.
func (env *testEnv) register(t *testing.T, email, name string) models.User {
	t.Helper()
	ctx := context.Background()
	if _, err := env.users.Register(ctx, models.UserCreationDto{Email: email, Password: "T3s!PA7sw0rd", Name: name}); err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	u, err := env.store.Users().FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("FindByEmail(%s) failed: %v", email, err)
	}
	if !u.Enabled {
		if err := env.store.Users().SetEnabled(ctx, u.ID, true); err != nil {
			t.Fatalf("SetEnabled failed: %v", err)
		}
		u.Enabled = true
	}
	return u
}
