package participant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	// Secret is the HS256 signing key.
	Secret string
	// Issuer is the expected iss claim. Empty disables the check.
	Issuer string
	// Audience is the expected aud claim. Empty disables the check.
	Audience string
}

// Auth validates an HS256 JWT bearer token. Requests without a valid token
// are answered with 401 and never reach the rest of the chain.
type Auth struct {
	secret    []byte
	opts      []jwt.ParserOption
	container *container.Container
}

// NewAuth creates an auth participant.
func NewAuth(cfg AuthConfig) (*Auth, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Auth{secret: []byte(cfg.Secret), opts: opts}, nil
}

func (p *Auth) Name() string { return "auth" }

func (p *Auth) SetContainer(c *container.Container) { p.container = c }

func (p *Auth) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
	if Recovering(req) {
		return next.Next(ctx, req, resp)
	}

	subject, err := p.authenticate(req.Header.Get("Authorization"))
	if err != nil {
		he := &domain.HTTPError{
			Status:  http.StatusUnauthorized,
			Code:    "unauthorized",
			Message: err.Error(),
		}
		return reject(p.container, resp, he).WithHeader("WWW-Authenticate", `Bearer realm="relaypipe"`), nil
	}

	if p.container != nil {
		p.container.Set(container.KeySubject, subject)
	}
	return next.Next(ctx, req.WithAttribute(domain.AttrSubject, subject), resp)
}

func (p *Auth) authenticate(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", errors.New("missing bearer token")
	}

	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, p.opts...)
	if err != nil {
		return "", errors.New("invalid bearer token")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}
