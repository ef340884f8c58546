package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sakashimaa/product-showcase/internal/domain"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// Provider resolves a bearer token to the caller it was issued for.
type Provider interface {
	CurrentCaller(ctx context.Context, token string) (*domain.Caller, error)
}

// Issuer mints tokens that a Provider with the same secret accepts.
type Issuer interface {
	Issue(caller domain.Caller) (string, error)
}

var (
	_ Provider = (*JWTProvider)(nil)
	_ Issuer   = (*JWTProvider)(nil)
)

type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

type JWTProvider struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTProvider(secret, issuer string, ttl time.Duration) (*JWTProvider, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &JWTProvider{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue mints an access token for caller. The login flow lives outside this
// service and uses it through the same secret.
func (p *JWTProvider) Issue(caller domain.Caller) (string, error) {
	if caller.ID == "" {
		return "", fmt.Errorf("issue token: empty caller id")
	}

	now := p.now()
	claims := Claims{
		Name: caller.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID,
			Issuer:    p.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

func (p *JWTProvider) CurrentCaller(_ context.Context, tokenString string) (*domain.Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &domain.Caller{
		ID:          claims.Subject,
		DisplayName: claims.Name,
	}, nil
}
