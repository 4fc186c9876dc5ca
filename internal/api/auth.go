package api

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Auth modes.
const (
	AuthNone   = "none"
	AuthAPIKey = "api-key"
	AuthJWT    = "jwt"
)

// callerKey is the locals key holding the authenticated caller.
const callerKey = "caller"

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Mode      string
	APIKey    string
	JWTSecret string
	JWTIssuer string
}

func publicPath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

// NewAuthMiddleware validates the Bearer credential for the configured mode.
func NewAuthMiddleware(cfg AuthConfig, logger zerolog.Logger) fiber.Handler {
	parser := jwt.NewParser(jwtOptions(cfg)...)

	return func(c *fiber.Ctx) error {
		if cfg.Mode == AuthNone || cfg.Mode == "" || publicPath(c.Path()) || c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return problemResponse(c, fiber.StatusUnauthorized,
				"missing_auth", "Unauthorized",
				"Authorization header is required")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_auth_scheme", "Unauthorized",
				"Authorization header must use Bearer scheme")
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		switch cfg.Mode {
		case AuthAPIKey:
			if cfg.APIKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cfg.APIKey)) == 1 {
				c.Locals(callerKey, "api-key")
				return c.Next()
			}
			logger.Warn().Str("path", c.Path()).Str("method", c.Method()).Msg("unauthorized request: invalid API key")
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_api_key", "Unauthorized",
				"Invalid API key")

		case AuthJWT:
			claims := &jwt.RegisteredClaims{}
			_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil {
				logger.Warn().Err(err).Str("path", c.Path()).Msg("unauthorized request: invalid token")
				return problemResponse(c, fiber.StatusUnauthorized,
					"invalid_token", "Unauthorized",
					"Invalid or expired token")
			}
			c.Locals(callerKey, claims.Subject)
			return c.Next()
		}

		return problemResponse(c, fiber.StatusUnauthorized,
			"unsupported_auth_mode", "Unauthorized",
			"Authentication is misconfigured")
	}
}

func jwtOptions(cfg AuthConfig) []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	return opts
}

// callerID returns the authenticated caller, or "" in none mode.
func callerID(c *fiber.Ctx) string {
	v, _ := c.Locals(callerKey).(string)
	return v
}
