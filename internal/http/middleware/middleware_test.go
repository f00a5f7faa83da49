package middleware

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfconvert/internal/config"
	"pdfconvert/internal/infra/logging"
)

func TestRegister_AddsHealthAndRequestID(t *testing.T) {
	app := fiber.New()
	Register(app, config.Config{})
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for _, path := range []string{"/ops/health", "/ops/ready"} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s request failed: %v", path, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected %s 200, got %d", path, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("ping request failed: %v", err)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id to be present")
	}
}

func TestRegister_ReadinessFailsWithoutScratchDir(t *testing.T) {
	var cfg config.Config
	cfg.Renderer.ScratchDir = "/definitely/missing/scratch"
	app := fiber.New()
	Register(app, cfg)

	req, _ := http.NewRequest(http.MethodGet, "/ops/ready", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestRegister_RecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(logging.SetLoggerForTest(zerolog.New(zerolog.SyncWriter(&buf))))

	app := fiber.New()
	Register(app, config.Config{})
	app.Get("/boom", func(c *fiber.Ctx) error { panic("renderer wiring exploded") })

	req, _ := http.NewRequest(http.MethodGet, "/boom", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, buf.String(), "Panic recovered")
	assert.Contains(t, buf.String(), "renderer wiring exploded")
	assert.Contains(t, buf.String(), `"stack"`)
}

func TestUserRateLimit(t *testing.T) {
	var cfg config.Config
	cfg.RateLimiter.UserLimit = 2
	cfg.RateLimiter.Interval = time.Hour

	app := fiber.New()
	Register(app, cfg)
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < cfg.RateLimiter.UserLimit; i++ {
		resp, err := app.Test(limitedRequest(t))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp, err := app.Test(limitedRequest(t))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func limitedRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "pdfconvert-test")
	return req
}

func TestNewRateLimitStore(t *testing.T) {
	var cfg config.Config
	assert.NotNil(t, newRateLimitStore(cfg), "memory store without redis host")

	cfg.RateLimiter.RedisHost = "127.0.0.1:1"
	assert.NotNil(t, newRateLimitStore(cfg), "unreachable redis falls back to memory")

	mrs, err := miniredis.Run()
	require.NoError(t, err)
	defer mrs.Close()
	cfg.RateLimiter.RedisHost = mrs.Addr()
	store := newRateLimitStore(cfg)
	require.NotNil(t, store)
	require.NoError(t, store.Set("k", []byte("v"), time.Minute))
	got, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
