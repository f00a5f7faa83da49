package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	"pdfconvert/internal/config"
	"pdfconvert/internal/infra/logging"
)

// Register attaches global middleware to the app. Order matters: panics are
// recovered first so every later layer is covered.
func Register(app *fiber.App, cfg config.Config) {
	app.Use(fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			logging.Error("Panic recovered",
				"path", c.Path(),
				"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
				"panic", fmt.Sprint(e),
				"stack", string(debug.Stack()),
			)
		},
	}))

	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  "/ops/health",
		ReadinessEndpoint: "/ops/ready",
		ReadinessProbe: func(c *fiber.Ctx) bool {
			return scratchDirReady(cfg.Renderer.ScratchDir)
		},
	}))

	if cfg.RateLimiter.UserLimit > 0 {
		app.Use(userRateLimitMiddleware(cfg, newRateLimitStore(cfg)))
	}

	app.Use(func(c *fiber.Ctx) error {
		logging.Info("Incoming request",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		)
		return c.Next()
	})
}

// newRateLimitStore prefers Redis and falls back to process memory.
func newRateLimitStore(cfg config.Config) (store fiber.Storage) {
	store = memoryStorage.New()
	if cfg.RateLimiter.RedisHost == "" {
		return store
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Redis limiter store init panicked, falling back to memory", "panic", fmt.Sprint(r))
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.RateLimiter.RedisHost},
		Database: cfg.RateLimiter.RedisDB,
	})
	logging.Info("Using Redis for rate limiting", "addr", cfg.RateLimiter.RedisHost, "db", cfg.RateLimiter.RedisDB)
	return store
}

// userRateLimitMiddleware limits requests per client (IP + User-Agent).
func userRateLimitMiddleware(cfg config.Config, store fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               cfg.RateLimiter.UserLimit,
		Expiration:        cfg.RateLimiter.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		KeyGenerator:      clientKey,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "user", clientKey(c), "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too Many Requests",
			})
		},
	})
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return hex.EncodeToString(sum[:])
}

func scratchDirReady(dir string) bool {
	if dir == "" {
		dir = os.TempDir()
	}
	st, err := os.Stat(dir)
	return err == nil && st.IsDir()
}
