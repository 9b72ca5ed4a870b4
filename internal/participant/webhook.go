package participant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// Webhook decisions.
const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
)

// WebhookConfig configures a webhook gate.
type WebhookConfig struct {
	Name    string
	URL     string
	Timeout time.Duration
	// OnError is applied when the webhook cannot be reached or answers
	// badly: "allow" or "deny" (default: deny).
	OnError string
	Retries int
	// Headers are sent to the webhook on every call.
	Headers map[string]string
	// ForwardHeaders names request headers copied into WebhookRequest.Headers.
	ForwardHeaders []string
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// WebhookRequest is the summary POSTed to the webhook.
type WebhookRequest struct {
	RequestID string            `json:"request_id,omitempty"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Subject   string            `json:"subject,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// WebhookDecision is the webhook's answer.
type WebhookDecision struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// Webhook asks an external service whether the request may proceed.
type Webhook struct {
	name      string
	url       string
	onError   string
	retries   int
	headers   map[string]string
	forward   []string
	client    *http.Client
	logger    *slog.Logger
	container *container.Container
}

// NewWebhook creates a webhook gate.
func NewWebhook(cfg WebhookConfig, logger *slog.Logger) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook %s: url is required", cfg.Name)
	}

	onError := cfg.OnError
	if onError == "" {
		onError = ActionDeny
	}
	if onError != ActionAllow && onError != ActionDeny {
		return nil, fmt.Errorf("webhook %s: invalid on_error %q", cfg.Name, onError)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "webhook"
	}

	return &Webhook{
		name:    name,
		url:     cfg.URL,
		onError: onError,
		retries: cfg.Retries,
		headers: cfg.Headers,
		forward: cfg.ForwardHeaders,
		client:  client,
		logger:  logger,
	}, nil
}

func (p *Webhook) Name() string { return p.name }

func (p *Webhook) SetContainer(c *container.Container) { p.container = c }

func (p *Webhook) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
	// The request was admitted on the first pass.
	if Recovering(req) {
		return next.Next(ctx, req, resp)
	}

	decision, err := p.decide(ctx, req)
	if err != nil {
		p.logger.Warn("webhook failed",
			slog.String("webhook", p.name),
			slog.String("on_error", p.onError),
			slog.String("error", err.Error()),
		)
		if p.onError == ActionAllow {
			return next.Next(ctx, req, resp)
		}
		decision = &WebhookDecision{Action: ActionDeny, Reason: "webhook unavailable"}
	}

	if decision.Action == ActionDeny {
		reason := decision.Reason
		if reason == "" {
			reason = "denied by " + p.name
		}
		return reject(p.container, resp, &domain.HTTPError{
			Status:  http.StatusForbidden,
			Code:    "forbidden",
			Message: reason,
		}), nil
	}

	return next.Next(ctx, req, resp)
}

func (p *Webhook) decide(ctx context.Context, req *domain.Request) (*WebhookDecision, error) {
	in := WebhookRequest{
		Method: req.Method,
		Path:   req.Path(),
	}
	if p.container != nil {
		in.RequestID = p.container.String(container.KeyRequestID)
		in.Subject = p.container.String(container.KeySubject)
	}
	for _, name := range p.forward {
		v := req.Header.Get(name)
		if v == "" {
			continue
		}
		if in.Headers == nil {
			in.Headers = make(map[string]string, len(p.forward))
		}
		in.Headers[http.CanonicalHeaderKey(name)] = v
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		decision, err := p.doRequest(ctx, body)
		if err == nil {
			return decision, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (p *Webhook) doRequest(ctx context.Context, body []byte) (*WebhookDecision, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var decision WebhookDecision
	if err := json.Unmarshal(respBody, &decision); err != nil {
		return nil, fmt.Errorf("unmarshal webhook decision: %w", err)
	}

	switch decision.Action {
	case ActionAllow, ActionDeny:
	case "":
		decision.Action = ActionAllow
	default:
		return nil, fmt.Errorf("invalid action from webhook: %s", decision.Action)
	}
	return &decision, nil
}
