package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shaiso/taskflow/internal/domain"
	"github.com/shaiso/taskflow/internal/telemetry"
)

// Ошибки аутентификации.
var (
	ErrMissingToken     = errors.New("authentication required")
	ErrInvalidToken     = errors.New("invalid token")
	ErrSecretNotSet     = errors.New("jwt secret not configured")
	ErrUnknownRole      = errors.New("unknown role")
	ErrMissingSubject   = errors.New("subject claim required")
	ErrMalformedSubject = errors.New("subject is not a valid user id")
)

// Claims — claims токена доступа.
//
// ID пользователя берётся из sub; userId поддерживается для токенов,
// выпущенных старым сервисом авторизации.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator проверяет HS256 bearer-токены.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator создаёт Authenticator.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify проверяет токен и возвращает пользователя.
func (a *Authenticator) Verify(token string) (domain.Actor, error) {
	if len(a.secret) == 0 {
		return domain.Actor{}, ErrSecretNotSet
	}

	claims := &Claims{}
	parsed, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return domain.Actor{}, ErrInvalidToken
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.UserID
	}
	if subject == "" {
		return domain.Actor{}, ErrMissingSubject
	}
	id, err := uuid.Parse(subject)
	if err != nil {
		return domain.Actor{}, ErrMalformedSubject
	}

	role := domain.Role(claims.Role)
	if !role.IsValid() {
		return domain.Actor{}, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}

	return domain.Actor{ID: id, Role: role}, nil
}

// Issue выпускает токен для пользователя. Используется CLI и тестами.
func (a *Authenticator) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrSecretNotSet
	}
	return IssueToken(actor, string(a.secret), ttl)
}

// IssueToken подписывает HS256 токен для пользователя.
func IssueToken(actor domain.Actor, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "taskflow",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Middleware требует валидный bearer-токен и кладёт пользователя в контекст.
func (a *Authenticator) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				Unauthorized(w, ErrMissingToken.Error())
				return
			}

			actor, err := a.Verify(token)
			if err != nil {
				telemetry.FromContext(r.Context()).Debug("authentication failed", "error", err)
				Unauthorized(w, "authentication failed")
				return
			}

			ctx := WithActor(r.Context(), actor)
			logger := telemetry.WithActor(telemetry.FromContext(ctx), actor.ID.String(), string(actor.Role))
			ctx = telemetry.WithLogger(ctx, logger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles пропускает только пользователей с одной из ролей.
// Должен стоять после Authenticator.Middleware.
func RequireRoles(roles ...domain.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				Unauthorized(w, ErrMissingToken.Error())
				return
			}
			if !slices.Contains(roles, actor.Role) {
				Forbidden(w, "you do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type actorKey struct{}

// WithActor добавляет пользователя в контекст.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext извлекает пользователя из контекста.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
