package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/worldview-app/apiserver/config"
	"github.com/worldview-app/apiserver/internal/auth"
	"github.com/worldview-app/apiserver/internal/countries"
	"github.com/worldview-app/apiserver/internal/services"
	"github.com/worldview-app/apiserver/internal/store/storetest"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

const sampleCountries = `[
	{"name":{"common":"United States"},"cca3":"USA","region":"Americas","languages":{"eng":"English"}},
	{"name":{"common":"France"},"cca3":"FRA","region":"Europe","languages":{"fra":"French"}},
	{"name":{"common":"Canada"},"cca3":"CAN","region":"Americas","languages":{"eng":"English","fra":"French"}}
]`

type fakeCountries struct {
	payload json.RawMessage
	err     error
}

func (f *fakeCountries) All(context.Context) (json.RawMessage, error) {
	return f.payload, f.err
}

func (f *fakeCountries) ByName(_ context.Context, name string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return countries.Filter(f.payload, countries.FilterOptions{Search: name})
}

func (f *fakeCountries) ByRegion(_ context.Context, region string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return countries.Filter(f.payload, countries.FilterOptions{Region: region})
}

func (f *fakeCountries) ByCode(_ context.Context, code string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return countries.SelectByCodes(f.payload, []string{code})
}

type testAPI struct {
	router    http.Handler
	repo      *storetest.Repository
	codec     *auth.TokenCodec
	countries *fakeCountries
	cookie    SessionCookie
}

func newTestAPI(t *testing.T, env string) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := storetest.NewRepository()
	codec := auth.NewTokenCodec(testSecret, time.Hour)
	source := &fakeCountries{payload: json.RawMessage(sampleCountries)}
	cookie := NewSessionCookie(config.Config{
		Env: env,
		Session: config.SessionConfig{
			CookieName:   config.DefaultCookieName,
			CookieMaxAge: 24 * time.Hour,
		},
	})

	accounts := services.NewAccountService(repo, nil, logger, services.WithHashCost(bcrypt.MinCost))
	favorites := services.NewFavoritesService(repo, nil, logger)

	r := chi.NewRouter()
	r.NotFound(NotFound)
	r.Get("/healthz", Healthz)
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			AuthRouter(r, accounts, codec, cookie, logger)
		})
		r.Route("/favorites", func(r chi.Router) {
			FavoritesRouter(r, favorites, source, RequireSession(codec, cookie.Name), logger)
		})
		r.Route("/countries", func(r chi.Router) {
			CountriesRouter(r, source, logger)
		})
	})

	return &testAPI{router: r, repo: repo, codec: codec, countries: source, cookie: cookie}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(t *testing.T, username, email string) AuthResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": "pw",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sessionCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
