//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/worldview-app/apiserver/config"
	"github.com/worldview-app/apiserver/internal/db"
	"github.com/worldview-app/apiserver/internal/server"
)

const (
	serverPort = 18080
)

const upstreamCountries = `[
	{"name":{"common":"United States"},"cca3":"USA","region":"Americas","languages":{"eng":"English"}},
	{"name":{"common":"France"},"cca3":"FRA","region":"Europe","languages":{"fra":"French"}}
]`

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d", "postgres"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, upstreamCountries)
	}))

	cfg := testConfig(upstream.URL)

	if err := waitForPostgres(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := server.New(ctx, cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}
	go func() {
		_ = srv.Start()
	}()

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	upstream.Close()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestFavoritesSequence(t *testing.T) {
	token := register(t, fmt.Sprintf("user_%d", time.Now().UnixNano()))

	steps := []struct {
		path string
		code string
		want []string
	}{
		{"/api/favorites/add", "USA", []string{"USA"}},
		{"/api/favorites/add", "USA", []string{"USA"}},
		{"/api/favorites/remove", "FRA", []string{"USA"}},
		{"/api/favorites/remove", "USA", []string{}},
	}
	for _, step := range steps {
		status, body := call(t, http.MethodPost, step.path, token, map[string]string{"countryCode": step.code})
		if status != http.StatusOK {
			t.Fatalf("%s %s: status %d: %s", step.path, step.code, status, body)
		}
		var resp struct {
			Favorites []string `json:"favorites"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("decode favorites: %v", err)
		}
		if !reflect.DeepEqual(resp.Favorites, step.want) {
			t.Fatalf("%s %s: got %v, want %v", step.path, step.code, resp.Favorites, step.want)
		}
	}
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	token := register(t, fmt.Sprintf("racer_%d", time.Now().UnixNano()))
	codes := []string{"USA", "FRA", "DEU", "ITA", "ESP", "JPN", "BRA", "CAN"}

	errs := make(chan error, len(codes))
	for _, code := range codes {
		go func(code string) {
			status, body := call(t, http.MethodPost, "/api/favorites/add", token, map[string]string{"countryCode": code})
			if status != http.StatusOK {
				errs <- fmt.Errorf("add %s: status %d: %s", code, status, body)
				return
			}
			errs <- nil
		}(code)
	}
	for range codes {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}

	status, body := call(t, http.MethodGet, "/api/favorites", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list favorites: status %d", status)
	}
	var resp struct {
		Favorites []string `json:"favorites"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode favorites: %v", err)
	}
	if len(resp.Favorites) != len(codes) {
		t.Fatalf("expected %d favorites, got %v", len(codes), resp.Favorites)
	}
}

func TestFavoritesWithoutSession(t *testing.T) {
	status, _ := call(t, http.MethodGet, "/api/favorites", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	username := fmt.Sprintf("dup_%d", time.Now().UnixNano())
	register(t, username)

	status, body := call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "testpass123!",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate, got %d: %s", status, body)
	}
}

func register(t *testing.T, username string) string {
	t.Helper()
	status, body := call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "testpass123!",
	})
	if status != http.StatusOK {
		t.Fatalf("register: status %d: %s", status, body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
		t.Fatalf("register: missing token in %s", body)
	}
	return resp.Token
}

func call(t *testing.T, method, path, token string, payload any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Errorf("encode payload: %v", err)
			return 0, nil
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		t.Errorf("build request: %v", err)
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Errorf("%s %s: %v", method, path, err)
		return 0, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func testConfig(countriesURL string) config.Config {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "worldview")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "worldview_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("COUNTRIES_API_URL", countriesURL)
	_ = os.Setenv("CACHE_BACKEND", "memory")
	_ = os.Setenv("MQ_BACKEND", "")
	return config.LoadConfig()
}

func runMigrations(root string, cfg config.Config) error {
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.URL(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func waitForPostgres(ctx context.Context, cfg config.Config) error {
	conn, err := sql.Open("postgres", db.URL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
