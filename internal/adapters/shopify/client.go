// Package shopify talks to the Shopify Admin GraphQL API: it reads tagged
// products with their pricing metafields and writes variant prices back.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"metal-pricer/internal/adapters/shopify/dto"
	"metal-pricer/internal/config"
	"metal-pricer/internal/logging"
)

const (
	metafieldNamespace = "custom"
	defaultProductTag  = "auto_price_update"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type Client struct {
	config     config.ShopifyConfig
	httpClient *http.Client
	logger     logging.LoggerService
	retry      RetryPolicy
}

type Option func(*Client)

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

func NewClient(config config.ShopifyConfig, httpClient *http.Client, logger logging.LoggerService, opts ...Option) *Client {
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if strings.TrimSpace(config.ProductTag) == "" {
		config.ProductTag = defaultProductTag
	}
	c := &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		retry:      DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint() (string, error) {
	domain := strings.TrimSpace(c.config.ShopDomain)
	if domain == "" {
		return "", errors.New("shopify shop domain is empty")
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	domain = strings.TrimRight(domain, "/")
	if c.config.APIVer == "" {
		return "", errors.New("shopify api version is empty")
	}
	return domain + "/admin/api/" + c.config.APIVer + "/graphql.json", nil
}

func (c *Client) shopifyAPIRequest(ctx context.Context, method string, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPStatusError(resp.StatusCode, resp.Status, respBody)
	}

	return respBody, nil
}

// graphqlRequest performs one attempt. Rate limiting surfaces as a
// *throttledError so callers can decide whether to retry.
func (c *Client) graphqlRequest(ctx context.Context, query string, variables map[string]any, out any) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}

	bodyBytes, err := json.Marshal(graphQLRequest{
		Query:     strings.TrimSpace(query),
		Variables: variables,
	})
	if err != nil {
		return err
	}

	raw, err := c.shopifyAPIRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		if isRateLimitedHTTPError(err) {
			return &throttledError{cause: err}
		}
		return err
	}

	var resp dto.GraphQLResponse[json.RawMessage]
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("shopify graphql response: %w", err)
	}
	if len(resp.Errors) > 0 {
		err := fmt.Errorf("shopify graphql errors: %s", formatGraphQLErrors(resp.Errors))
		if isThrottleGraphQLError(resp.Errors) {
			return &throttledError{cause: err}
		}
		return err
	}
	if out == nil {
		return nil
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return errors.New("shopify graphql response missing data")
	}
	return json.Unmarshal(resp.Data, out)
}

// graphqlRequestWithRetry retries throttled attempts under the client's
// retry policy and reports how many attempts were made.
func (c *Client) graphqlRequestWithRetry(ctx context.Context, action string, query string, variables map[string]any, out any) (int, error) {
	return c.retry.Do(ctx, func(attempt int) error {
		return c.graphqlRequest(ctx, query, variables, out)
	}, func(attempt int, delay time.Duration, err error) {
		c.logWarning(fmt.Sprintf("shopify %s throttled attempt=%d/%d retry_in=%s", action, attempt, c.retry.MaxAttempts, delay))
	})
}

type userErrorDetail struct {
	Field   string
	Message string
}

type userErrorsError struct {
	Action string
	Errors []userErrorDetail
}

func (e *userErrorsError) Error() string {
	if e == nil {
		return "shopify user errors"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		field := strings.TrimSpace(err.Field)
		message := strings.TrimSpace(err.Message)
		if field == "" {
			parts = append(parts, message)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", field, message))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("shopify %s failed with user errors", e.Action)
	}
	return fmt.Sprintf("shopify %s failed: %s", e.Action, strings.Join(parts, "; "))
}

// userErrorsToDetailedError returns a *throttledError when any user error
// carries the THROTTLED code.
func userErrorsToDetailedError(action string, errs []dto.ShopifyUserError) error {
	if len(errs) == 0 {
		return nil
	}
	throttled := false
	details := make([]userErrorDetail, 0, len(errs))
	for _, e := range errs {
		if strings.EqualFold(strings.TrimSpace(e.Code), throttledCode) {
			throttled = true
		}
		message := strings.TrimSpace(e.Message)
		if message == "" {
			continue
		}
		field := ""
		if len(e.Field) > 0 {
			field = strings.Join(e.Field, ".")
		}
		details = append(details, userErrorDetail{Field: field, Message: message})
	}
	if len(details) == 0 {
		details = []userErrorDetail{{Message: "user errors returned"}}
	}
	err := &userErrorsError{Action: action, Errors: details}
	if throttled {
		return &throttledError{cause: err}
	}
	return err
}

func formatGraphQLErrors(errs []dto.GraphQLError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := strings.TrimSpace(e.Message)
		if msg == "" {
			continue
		}
		if len(e.Path) > 0 {
			msg = fmt.Sprintf("%s (path: %v)", msg, e.Path)
		}
		parts = append(parts, msg)
	}
	if len(parts) == 0 {
		return "unknown graphql error"
	}
	return strings.Join(parts, "; ")
}

func (c *Client) log(message string) {
	if c.logger == nil || strings.TrimSpace(message) == "" {
		return
	}
	c.logger.Log(message)
}

func (c *Client) logWarning(message string) {
	if c.logger == nil || strings.TrimSpace(message) == "" {
		return
	}
	c.logger.LogWarning(message)
}

func (c *Client) logError(message string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.LogError(message, err)
}

func (c *Client) logSuccess(message string) {
	if c.logger == nil || strings.TrimSpace(message) == "" {
		return
	}
	c.logger.LogSuccess(message)
}
