package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims identify a caller by email. Subject carries the email; the email
// claim is accepted for tokens minted by the account service.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

type Config struct {
	Secret []byte
	Issuer string
}

// Resolver turns an HS256 bearer token into the caller's email.
type Resolver struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewResolver(cfg Config) (*Resolver, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("identity: jwt secret is required")
	}
	return &Resolver{secret: cfg.Secret, issuer: strings.TrimSpace(cfg.Issuer), now: time.Now}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}

// ResolveHeader is Resolve applied to a raw Authorization header.
func (r *Resolver) ResolveHeader(ctx context.Context, header string) (string, error) {
	token, err := BearerToken(header)
	if err != nil {
		return "", err
	}
	return r.Resolve(ctx, token)
}

func (r *Resolver) Resolve(ctx context.Context, token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
		jwt.WithExpirationRequired(),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	email := strings.TrimSpace(claims.Subject)
	if email == "" {
		email = strings.TrimSpace(claims.Email)
	}
	if email == "" {
		return "", ErrInvalidToken
	}
	return email, nil
}

// Sign mints a token for email. Used by the dev token command and tests.
func (r *Resolver) Sign(email string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := r.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

type contextKey struct{}

func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, contextKey{}, email)
}

func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(contextKey{}).(string)
	return email
}
