package participant

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
	"github.com/tjfontaine/relaypipe/internal/participant/serializer"
)

const testSecret = "test-secret-0123456789"

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "relaypipe-test",
		Audience:  jwt.ClaimStrings{"relaypipe"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func TestAuth_Valid(t *testing.T) {
	auth, err := NewAuth(AuthConfig{Secret: testSecret, Issuer: "relaypipe-test", Audience: "relaypipe"})
	if err != nil {
		t.Fatalf("NewAuth() error = %v", err)
	}

	var subject any
	h := newHarness(t, auth, NewEndpoint("whoami", func(_ context.Context, req *domain.Request) (any, error) {
		subject, _ = req.Attribute(domain.AttrSubject)
		return "ok", nil
	}))

	token := signToken(t, testSecret, validClaims())
	resp := h.mustDispatch(get("/").WithHeader("Authorization", "Bearer "+token))

	if resp.StatusCode() != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode())
	}
	if subject != "alice" {
		t.Errorf("subject attribute = %v", subject)
	}
	if h.container.String(container.KeySubject) != "alice" {
		t.Error("expected subject in container")
	}
}

func TestAuth_Rejects(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name   string
		header func(t *testing.T) string
	}{
		{name: "missing header", header: func(t *testing.T) string { return "" }},
		{name: "wrong scheme", header: func(t *testing.T) string { return "Basic dXNlcjpwYXNz" }},
		{name: "garbage token", header: func(t *testing.T) string { return "Bearer not.a.jwt" }},
		{name: "wrong secret", header: func(t *testing.T) string { return "Bearer " + signToken(t, "other-secret", validClaims()) }},
		{name: "expired", header: func(t *testing.T) string { return "Bearer " + signToken(t, testSecret, expired) }},
		{name: "wrong issuer", header: func(t *testing.T) string { return "Bearer " + signToken(t, testSecret, wrongIssuer) }},
		{name: "no expiry", header: func(t *testing.T) string { return "Bearer " + signToken(t, testSecret, noExpiry) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := NewAuth(AuthConfig{Secret: testSecret, Issuer: "relaypipe-test", Audience: "relaypipe"})
			if err != nil {
				t.Fatalf("NewAuth() error = %v", err)
			}
			h := newHarness(t, serializer.JSON(), auth, sentinelEndpoint(t))

			req := get("/")
			if header := tt.header(t); header != "" {
				req = req.WithHeader("Authorization", header)
			}
			resp := h.mustDispatch(req)

			if resp.StatusCode() != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode())
			}
			if resp.Header.Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
			if body := decodeErrorBody(t, resp); body.Error.Code != "unauthorized" {
				t.Errorf("code = %q", body.Error.Code)
			}
		})
	}
}

func TestNewAuth_RequiresSecret(t *testing.T) {
	if _, err := NewAuth(AuthConfig{}); err == nil {
		t.Error("expected error without secret")
	}
}

func TestGates_PassThroughOnRecovery(t *testing.T) {
	auth, err := NewAuth(AuthConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("NewAuth() error = %v", err)
	}
	keys, err := NewAPIKeyAuth(APIKeyConfig{Keys: []APIKey{{Subject: "svc", KeyHash: HashAPIKey("k1")}}})
	if err != nil {
		t.Fatalf("NewAPIKeyAuth() error = %v", err)
	}

	gates := map[string]ports.Participant{"auth": auth, "api_key": keys}
	for name, gate := range gates {
		t.Run(name, func(t *testing.T) {
			errResp := domain.NewResponse().WithStatus(http.StatusConflict)
			reached := false
			next := ports.ContinuationFunc(func(ctx context.Context, req *domain.Request, resp *domain.Response) (*domain.Response, error) {
				reached = true
				return resp, nil
			})

			// No credentials: only the recovery attribute lets it through.
			req := get("/").WithAttribute(domain.AttrRecovering, errors.New("boom"))
			resp, err := gate.Handle(context.Background(), req, errResp, next)
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if !reached {
				t.Error("recovery pass was not forwarded")
			}
			if resp.StatusCode() != http.StatusConflict {
				t.Errorf("status = %d, want 409", resp.StatusCode())
			}
		})
	}
}
