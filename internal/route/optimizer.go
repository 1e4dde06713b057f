package route

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/parcel-tracker/internal/config"
	apperrors "github.com/spec-kit/parcel-tracker/pkg/util"
)

// Optimizer asks a text-completion model to rewrite a delivery route
// description into an optimized stop order with driving advice.
type Optimizer struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewOptimizer builds the client. With no API key configured the optimizer
// stays disabled and every call fails fast.
func NewOptimizer(cfg config.OptimizerConfig, logger *zap.Logger) *Optimizer {
	return &Optimizer{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout()},
		logger:  logger,
	}
}

// OptimizeInput describes the route to optimize.
type OptimizeInput struct {
	Origin      string
	Destination string
	Waypoints   []string
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// OptimizeRoute returns the model's optimized description of the route.
func (o *Optimizer) OptimizeRoute(ctx context.Context, input OptimizeInput) (string, error) {
	if o.apiKey == "" {
		return "", apperrors.NewDomainError("OPTIMIZER_DISABLED", "route optimizer not configured",
			http.StatusServiceUnavailable, nil)
	}
	if strings.TrimSpace(input.Origin) == "" || strings.TrimSpace(input.Destination) == "" {
		return "", apperrors.NewValidationError("origin and destination required", nil)
	}

	payload := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a delivery route planner. Reply with an optimized stop order and concise driving advice."},
			{Role: "user", Content: buildPrompt(input)},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, bytes.NewReader(body))
	})
	if err != nil {
		return "", o.mapError(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperrors.NewInternalError(fmt.Errorf("decode completion: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", apperrors.NewInternalError(errors.New("completion returned no choices"))
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func buildPrompt(input OptimizeInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Optimize this delivery route.\nOrigin: %s\nDestination: %s\n", input.Origin, input.Destination)
	if len(input.Waypoints) > 0 {
		b.WriteString("Stops:\n")
		for _, wp := range input.Waypoints {
			fmt.Fprintf(&b, "- %s\n", wp)
		}
	}
	return b.String()
}

func (o *Optimizer) newRequest(ctx context.Context, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (o *Optimizer) do(req *http.Request) (*http.Response, error) {
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close() //nolint:errcheck
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// doWithRetry retries transient failures (network errors, 429, 5xx) with
// exponential backoff while respecting context cancellation.
func (o *Optimizer) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	const maxAttempts = 3
	backoff := 200 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, err
		}

		resp, err := o.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) || attempt == maxAttempts {
			return nil, lastErr
		}
		o.logger.Warn("completion request failed, retrying",
			zap.Int("attempt", attempt), zap.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

func retryable(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (o *Optimizer) mapError(err error) error {
	var he *httpStatusError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperrors.NewPermissionDenied("optimize_route", o.baseURL+"/chat/completions", err)
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return apperrors.NewTransient("optimize_route", err)
		}
		return apperrors.NewInternalError(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTransient("optimize_route", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.NewTransient("optimize_route", err)
	}
	return apperrors.NewInternalError(err)
}
