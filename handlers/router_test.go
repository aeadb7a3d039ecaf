package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"photohunter/models"
	"photohunter/repository"
	"photohunter/services"
	apierrors "photohunter/utils/errors"
)

const pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

type stubImageHost struct {
	uploads int
}

func (h *stubImageHost) UploadImage(_ context.Context, u services.Upload) (models.Picture, error) {
	if _, err := io.ReadAll(u.Body); err != nil {
		return models.Picture{}, err
	}
	h.uploads++
	return models.Picture{ID: "pic-1", URL: "https://images.example.com/pic-1.png"}, nil
}

func (h *stubImageHost) DeleteImage(context.Context, string) error { return nil }

type testServer struct {
	*httptest.Server
	store  *repository.MemoryStore
	images *stubImageHost
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	images := &stubImageHost{}
	tokens := services.NewTokenService("testSecret", time.Hour)

	users := services.NewUserService(services.UserServiceDeps{
		Users:     store.Users(),
		Locations: store.Locations(),
		Tokens:    tokens,
		Mailer:    services.LogMailer{},
		BaseURL:   "http://localhost:8080",
	})
	locations := services.NewLocationService(services.LocationServiceDeps{
		Locations:     store.Locations(),
		Pictures:      store.Pictures(),
		Users:         store.Users(),
		Images:        images,
		BoxHalfSideKm: 3000,
	})

	srv := httptest.NewServer(NewRouter(RouterDeps{
		Users:          users,
		Locations:      locations,
		Tokens:         tokens,
		AllowedOrigins: []string{"http://localhost:3000"},
		HealthChecks:   checks,
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(users.Wait)
	return &testServer{Server: srv, store: store, images: images}
}

func (s *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) doJSON(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	}
	return s.do(t, method, path, token, reader, "application/json")
}

func decode[T any](t *testing.T, resp *http.Response, wantStatus int) T {
	t.Helper()
	var v T
	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status = %d, want %d; body %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, wantStatus, b)
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

func (s *testServer) registerAndLogin(t *testing.T, email, name string) string {
	t.Helper()
	decode[models.UserDto](t, s.doJSON(t, "POST", "/user/register", "", models.UserCreationDto{Email: email, Password: "T3s!PA7sw0rd", Name: name}), http.StatusOK)
	login := decode[models.LoginJWTDto](t, s.doJSON(t, "POST", "/user/login", "", models.UserLoginDto{Email: email, Password: "T3s!PA7sw0rd"}), http.StatusOK)
	return login.JWT
}

// multipartLocation builds a create request with a JSON part and an
// optional file.
func multipartLocation(t *testing.T, dto models.LocationCreationDto, file []byte) (io.Reader, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="locationCreationDto"; filename="blob"`)
	h.Set("Content-Type", "application/json")
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.NewEncoder(part).Encode(dto); err != nil {
		t.Fatal(err)
	}

	if file != nil {
		fw, err := w.CreateFormFile("file", "photo.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(file)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return body, w.FormDataContentType()
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, nil)

	got := decode[models.UserDto](t, s.doJSON(t, "POST", "/user/register", "", models.UserCreationDto{Email: "test@test.com", Password: "T3s!PA7sw0rd", Name: "fullname"}), http.StatusOK)
	if diff := cmp.Diff(models.UserDto{FullName: "fullname"}, got); diff != "" {
		t.Errorf("register response diff (-want +got):\n%s", diff)
	}

	dup := decode[apierrors.APIError](t, s.doJSON(t, "POST", "/user/register", "", models.UserCreationDto{Email: "test@test.com", Password: "T3s!PA7sw0rd", Name: "other"}), http.StatusBadRequest)
	if dup.Code != "EMAIL_TAKEN" {
		t.Errorf("duplicate register code = %q", dup.Code)
	}

	weak := decode[apierrors.APIError](t, s.doJSON(t, "POST", "/user/register", "", models.UserCreationDto{Email: "weak@test.com", Password: "T3stPassword", Name: "n"}), http.StatusBadRequest)
	if weak.Code != "VALIDATION_ERROR" {
		t.Errorf("weak password code = %q", weak.Code)
	}

	login := decode[models.LoginJWTDto](t, s.doJSON(t, "POST", "/user/login", "", models.UserLoginDto{Email: "test@test.com", Password: "T3s!PA7sw0rd"}), http.StatusOK)
	if login.JWT == "" {
		t.Errorf("login returned no token")
	}

	bad := decode[apierrors.APIError](t, s.doJSON(t, "POST", "/user/login", "", models.UserLoginDto{Email: "test@test.com", Password: "nope"}), http.StatusBadRequest)
	if bad.Code != "BAD_LOGIN" || bad.Message != "bad login data" {
		t.Errorf("bad login error = %+v", bad)
	}

	resp := s.do(t, "POST", "/user/login", "", strings.NewReader("{not json"), "application/json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", resp.StatusCode)
	}
}

func TestProfileRequiresToken(t *testing.T) {
	s := newTestServer(t, nil)

	for _, token := range []string{"", "garbage"} {
		resp := s.do(t, "GET", "/user/profile", token, nil, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("profile with token %q status = %d, want 401", token, resp.StatusCode)
		}
	}

	token := s.registerAndLogin(t, "me@test.com", "me")
	profile := decode[models.ProfileDto](t, s.do(t, "GET", "/user/profile", token, nil, ""), http.StatusOK)
	want := models.ProfileDto{User: models.UserDto{FullName: "me"}, Locations: []models.LocationDto{}, Favorites: []models.LocationDto{}}
	if diff := cmp.Diff(want, profile); diff != "" {
		t.Errorf("profile diff (-want +got):\n%s", diff)
	}
}

func TestLocationLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	me := s.registerAndLogin(t, "me@test.com", "me")
	other := s.registerAndLogin(t, "other@test.com", "other")

	body, contentType := multipartLocation(t, models.LocationCreationDto{Title: "l1", Lat: 50, Lng: 15}, []byte(pngHeader))
	l1 := decode[models.LocationDto](t, s.do(t, "POST", "/api/location/", me, body, contentType), http.StatusOK)
	want := &models.Picture{ID: "pic-1", URL: "https://images.example.com/pic-1.png"}
	if diff := cmp.Diff(want, l1.Thumbnail); diff != "" {
		t.Errorf("thumbnail diff (-want +got):\n%s", diff)
	}
	if !l1.IsOwner {
		t.Errorf("creator is not marked as owner")
	}

	body, contentType = multipartLocation(t, models.LocationCreationDto{Title: "l2", Lat: 10.46484, Lng: 1.648}, nil)
	l2 := decode[models.LocationDto](t, s.do(t, "POST", "/api/location/", other, body, contentType), http.StatusOK)
	if l2.Thumbnail != nil {
		t.Errorf("location without upload has thumbnail %+v", l2.Thumbnail)
	}

	near := decode[[]models.LocationDto](t, s.do(t, "GET", "/api/location?lat=50&lng=50", "", nil, ""), http.StatusOK)
	if len(near) != 1 || near[0].ID != l1.ID {
		t.Errorf("box query returned %+v, want only l1", near)
	}

	all := decode[[]models.LocationDto](t, s.do(t, "GET", "/api/location", me, nil, ""), http.StatusOK)
	if len(all) != 2 {
		t.Fatalf("list returned %d locations, want 2", len(all))
	}
	for _, l := range all {
		if l.IsOwner != (l.ID == l1.ID) {
			t.Errorf("location %s is_owner = %v", l.Title, l.IsOwner)
		}
	}

	for _, path := range []string{"/api/location?lat=50", "/api/location?lat=abc&lng=1"} {
		if resp := s.do(t, "GET", path, "", nil, ""); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, resp.StatusCode)
		}
	}

	got := decode[models.LocationDto](t, s.do(t, "GET", "/api/location/"+l2.ID, "", nil, ""), http.StatusOK)
	if got.Title != "l2" || got.Owner == nil || got.Owner.FullName != "other" {
		t.Errorf("GET l2 = %+v", got)
	}
	if resp := s.do(t, "GET", "/api/location/missing", "", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET missing status = %d, want 404", resp.StatusCode)
	}

	decode[models.ProfileDto](t, s.do(t, "POST", "/user/favorites/"+l2.ID, me, nil, ""), http.StatusOK)
	profile := decode[models.ProfileDto](t, s.do(t, "POST", "/user/favorites/"+l1.ID, me, nil, ""), http.StatusOK)
	ids := func(dtos []models.LocationDto) []string {
		out := []string{}
		for _, d := range dtos {
			out = append(out, d.ID)
		}
		return out
	}
	sorted := cmpopts.SortSlices(func(a, b string) bool { return a < b })
	if diff := cmp.Diff([]string{l1.ID, l2.ID}, ids(profile.Favorites), sorted); diff != "" {
		t.Errorf("favorites diff (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{l1.ID}, ids(profile.Locations)); diff != "" {
		t.Errorf("owned diff (-want +got):\n%s", diff)
	}

	profile = decode[models.ProfileDto](t, s.do(t, "DELETE", "/user/favorites/"+l2.ID, me, nil, ""), http.StatusOK)
	if diff := cmp.Diff([]string{l1.ID}, ids(profile.Favorites)); diff != "" {
		t.Errorf("favorites after delete diff (-want +got):\n%s", diff)
	}
	if resp := s.do(t, "POST", "/user/favorites/missing", me, nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("favorite missing status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateLocationForms(t *testing.T) {
	s := newTestServer(t, nil)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range map[string]string{"title": "fields", "description": "d", "lat": "1.5", "lng": "-2.5"} {
		w.WriteField(k, v)
	}
	fw, _ := w.CreateFormFile("file", "notes.txt")
	fw.Write([]byte("just some text"))
	w.Close()

	resp := s.do(t, "POST", "/api/location", "", bytes.NewReader(body.Bytes()), w.FormDataContentType())
	if e := decode[apierrors.APIError](t, resp, http.StatusBadRequest); e.Code != "VALIDATION_ERROR" {
		t.Errorf("non-image upload error = %+v", e)
	}
	if s.images.uploads != 0 {
		t.Errorf("non-image file reached the image host")
	}

	body.Reset()
	w = multipart.NewWriter(body)
	for k, v := range map[string]string{"title": "fields", "description": "d", "lat": "1.5", "lng": "-2.5"} {
		w.WriteField(k, v)
	}
	w.Close()
	got := decode[models.LocationDto](t, s.do(t, "POST", "/api/location", "", body, w.FormDataContentType()), http.StatusOK)
	want := models.LocationDto{ID: got.ID, Title: "fields", Description: "d", Lat: 1.5, Lng: -2.5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("created location diff (-want +got):\n%s", diff)
	}

	got = decode[models.LocationDto](t, s.doJSON(t, "POST", "/api/location", "", models.LocationCreationDto{Title: "json", Lat: 3, Lng: 4}), http.StatusOK)
	if got.Title != "json" || got.Lat != 3 || got.Lng != 4 {
		t.Errorf("JSON create = %+v", got)
	}

	bad := decode[apierrors.APIError](t, s.doJSON(t, "POST", "/api/location", "", models.LocationCreationDto{Title: "", Lat: 3, Lng: 4}), http.StatusBadRequest)
	if bad.Code != "VALIDATION_ERROR" {
		t.Errorf("missing title error = %+v", bad)
	}

	body.Reset()
	w = multipart.NewWriter(body)
	for k, v := range map[string]string{"title": "nan", "lat": "NaN", "lng": "0"} {
		w.WriteField(k, v)
	}
	w.Close()
	resp = s.do(t, "POST", "/api/location", "", body, w.FormDataContentType())
	if e := decode[apierrors.APIError](t, resp, http.StatusBadRequest); e.Code != "INVALID_INPUT" {
		t.Errorf("NaN field error = %+v", e)
	}
}

func TestCreateLocationMultipartMixed(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.registerAndLogin(t, "me@test.com", "me")

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="locationCreationDto"`)
	h.Set("Content-Type", "application/json")
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	json.NewEncoder(part).Encode(models.LocationCreationDto{Title: "mixed", Lat: 50, Lng: 15})

	h = textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="photo.png"`)
	h.Set("Content-Type", "image/png")
	part, err = w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(pngHeader))
	w.Close()

	got := decode[models.LocationDto](t, s.do(t, "POST", "/api/location/", token, body, "multipart/mixed; boundary="+w.Boundary()), http.StatusOK)
	if got.Title != "mixed" || got.Lat != 50 || got.Lng != 15 || !got.IsOwner {
		t.Errorf("multipart/mixed create = %+v", got)
	}
	if got.Thumbnail == nil || s.images.uploads != 1 {
		t.Errorf("thumbnail = %+v after %d uploads", got.Thumbnail, s.images.uploads)
	}

	body.Reset()
	w = multipart.NewWriter(body)
	h = textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="locationCreationDto"`)
	h.Set("Content-Type", "application/json")
	part, _ = w.CreatePart(h)
	json.NewEncoder(part).Encode(models.LocationCreationDto{Title: "no file", Lat: 1, Lng: 2})
	w.Close()
	got = decode[models.LocationDto](t, s.do(t, "POST", "/api/location/", token, body, "multipart/mixed; boundary="+w.Boundary()), http.StatusOK)
	if got.Title != "no file" || got.Thumbnail != nil {
		t.Errorf("multipart/mixed create without file = %+v", got)
	}

	if resp := s.do(t, "POST", "/api/location/", token, strings.NewReader("x"), "multipart/mixed"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("multipart/mixed without boundary status = %d, want 400", resp.StatusCode)
	}
}

func TestListRejectsNonFiniteCoordinates(t *testing.T) {
	s := newTestServer(t, nil)
	body, contentType := multipartLocation(t, models.LocationCreationDto{Title: "south", Lat: -45, Lng: -120}, nil)
	decode[models.LocationDto](t, s.do(t, "POST", "/api/location/", "", body, contentType), http.StatusOK)

	for _, query := range []string{"lat=NaN&lng=0", "lat=0&lng=nan", "lat=Inf&lng=0", "lat=0&lng=-Infinity"} {
		resp := s.do(t, "GET", "/api/location?"+query, "", nil, "")
		if e := decode[apierrors.APIError](t, resp, http.StatusBadRequest); e.Code != "INVALID_INPUT" {
			t.Errorf("GET ?%s error = %+v", query, e)
		}
	}
}

func TestHealthz(t *testing.T) {
	healthy := newTestServer(t, map[string]HealthCheck{"store": func(context.Context) error { return nil }})
	resp := healthy.do(t, "GET", "/healthz", "", nil, "")
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(b) != "OK" {
		t.Errorf("healthz = %d %q", resp.StatusCode, b)
	}

	broken := newTestServer(t, map[string]HealthCheck{"redis": func(context.Context) error { return errors.New("down") }})
	if resp := broken.do(t, "GET", "/healthz", "", nil, ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("broken healthz status = %d, want 503", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	req, _ := http.NewRequest("OPTIONS", s.URL+"/user/profile", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
