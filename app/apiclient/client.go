package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing-bff/app/factory"
	"github.com/vibast-solutions/ms-go-billing-bff/app/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const maxErrorBodyBytes = 64 << 10

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL  string
	http     *http.Client
	tokens   oauth2.TokenSource
	sanitize *bluemonday.Policy
	logger   logrus.FieldLogger
}

// New builds a client for the billing backend. tokens may be nil when every call
// carries its own bearer through WithBearer.
func New(cfg Config, tokens oauth2.TokenSource) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens:   tokens,
		sanitize: bluemonday.StrictPolicy(),
		logger:   factory.NewModuleLogger("billing-api-client"),
	}
}

type bearerKey struct{}

// WithBearer attaches the end user's access token to ctx; it takes precedence over
// the client's token source.
func WithBearer(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerFromContext returns the token set by WithBearer.
func BearerFromContext(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if strings.TrimSpace(requestID) == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

// Request describes one backend call. DefaultMessage is surfaced when the error
// body carries no message. Operation names the call in metrics; Path may carry
// user data and is never used as a label.
type Request struct {
	Operation      string
	Method         string
	Path           string
	Query          url.Values
	Body           any
	DefaultMessage string
}

// Do executes req and decodes a 2xx JSON body into out. Every failure is returned as *Error.
func (c *Client) Do(ctx context.Context, req Request, out any) *Error {
	start := time.Now()
	apiErr := c.do(ctx, req, out)

	result := "ok"
	if apiErr != nil {
		result = apiErr.Kind.String()
	}
	operation := req.Operation
	if operation == "" {
		operation = "unknown"
	}
	metrics.BackendRequestDuration.WithLabelValues(req.Method, operation, result).Observe(time.Since(start).Seconds())
	return apiErr
}

func (c *Client) do(ctx context.Context, req Request, out any) *Error {
	httpReq, apiErr := c.newRequest(ctx, req)
	if apiErr != nil {
		return apiErr
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return &Error{Kind: KindNetwork, Message: req.DefaultMessage, Cause: ctx.Err()}
		}
		c.logger.WithError(err).WithField("path", req.Path).Warn("Billing API request failed")
		return &Error{Kind: KindNetwork, Message: req.DefaultMessage, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeError(resp, req.DefaultMessage)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.WithError(err).WithField("path", req.Path).Warn("Billing API response could not be decoded")
		return &Error{
			Kind:       KindServer,
			StatusCode: resp.StatusCode,
			Message:    req.DefaultMessage,
			Cause:      fmt.Errorf("decode %s response: %w", req.Path, err),
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, *Error) {
	if c.baseURL == "" {
		return nil, &Error{Kind: KindNetwork, Message: req.DefaultMessage, Cause: errors.New("billing api base url is not configured")}
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Message: req.DefaultMessage, Cause: err}
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: req.DefaultMessage, Cause: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	requestID, _ := ctx.Value(requestIDKey{}).(string)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("X-Request-ID", requestID)

	if apiErr := c.authorize(ctx, httpReq); apiErr != nil {
		return nil, apiErr
	}
	return httpReq, nil
}

func (c *Client) authorize(ctx context.Context, httpReq *http.Request) *Error {
	if token := BearerFromContext(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
	if c.tokens == nil {
		return nil
	}

	token, err := c.tokens.Token()
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "Unable to obtain an access token", Cause: err}
	}
	token.SetAuthHeader(httpReq)
	return nil
}

func (c *Client) decodeError(resp *http.Response, defaultMessage string) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var body struct {
		Message string `json:"message"`
	}
	message := ""
	if len(raw) > 0 && json.Unmarshal(raw, &body) == nil {
		message = strings.TrimSpace(c.sanitize.Sanitize(body.Message))
	}
	if message == "" {
		message = defaultMessage
	}

	return &Error{Kind: KindServer, StatusCode: resp.StatusCode, Message: message}
}
