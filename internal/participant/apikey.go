package participant

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// DefaultAPIKeyHeader carries the key when no header is configured.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKey maps a SHA-256 key hash to the subject it authenticates.
type APIKey struct {
	Subject string
	KeyHash string
}

// APIKeyConfig configures API key authentication.
type APIKeyConfig struct {
	Header string
	Keys   []APIKey
}

// APIKeyAuth authenticates requests by the SHA-256 hash of a static key.
// Only hashes are held in memory.
type APIKeyAuth struct {
	header    string
	keys      map[string]string // keyHash -> subject
	container *container.Container
}

// NewAPIKeyAuth creates an API key participant.
func NewAPIKeyAuth(cfg APIKeyConfig) (*APIKeyAuth, error) {
	if len(cfg.Keys) == 0 {
		return nil, errors.New("api_key: at least one key is required")
	}

	keys := make(map[string]string, len(cfg.Keys))
	for _, k := range cfg.Keys {
		hash := strings.ToLower(k.KeyHash)
		if _, err := hex.DecodeString(hash); err != nil || len(hash) != sha256.Size*2 {
			return nil, fmt.Errorf("api_key: invalid key_hash for subject %q", k.Subject)
		}
		if k.Subject == "" {
			return nil, errors.New("api_key: subject is required")
		}
		keys[hash] = k.Subject
	}

	header := cfg.Header
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &APIKeyAuth{header: header, keys: keys}, nil
}

func (p *APIKeyAuth) Name() string { return "api_key" }

func (p *APIKeyAuth) SetContainer(c *container.Container) { p.container = c }

func (p *APIKeyAuth) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
	if Recovering(req) {
		return next.Next(ctx, req, resp)
	}

	subject, ok := p.lookup(req.Header.Get(p.header))
	if !ok {
		return reject(p.container, resp, &domain.HTTPError{
			Status:  http.StatusUnauthorized,
			Code:    "unauthorized",
			Message: "invalid API key",
		}), nil
	}

	if p.container != nil {
		p.container.Set(container.KeySubject, subject)
	}
	return next.Next(ctx, req.WithAttribute(domain.AttrSubject, subject), resp)
}

func (p *APIKeyAuth) lookup(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	hash := HashAPIKey(key)
	for h, subject := range p.keys {
		if subtle.ConstantTimeCompare([]byte(h), []byte(hash)) == 1 {
			return subject, true
		}
	}
	return "", false
}

// HashAPIKey returns the hex SHA-256 hash stored in configuration for key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
