package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"
	pageSize       = 100
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrNotFound    = errors.New("not found")
)

var tracer = otel.Tracer("github")

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
	rateLimit  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.rateLimit
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

func (e *APIError) retryable() bool {
	return e.rateLimit || e.StatusCode >= 500
}

type ClientConfig struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration

	// RateLimit is the steady-state request rate in requests per second.
	RateLimit float64
	RateBurst int

	// MaxRetries bounds retries of rate-limited and 5xx responses.
	MaxRetries      uint64
	InitialInterval time.Duration

	// Transport overrides the base transport (tests).
	Transport http.RoundTripper
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:         DefaultBaseURL,
		UserAgent:       "issues-etl",
		Timeout:         30 * time.Second,
		RateLimit:       1,
		RateBurst:       5,
		MaxRetries:      3,
		InitialInterval: time.Second,
	}
}

// Client lists repositories, issues, comments and timelines for the
// authenticated principal. Every list call follows Link pagination to the end.
type Client struct {
	logger  *slog.Logger
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter

	userAgent       string
	maxRetries      uint64
	initialInterval time.Duration
}

func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	logger = logger.With("module", "github")

	def := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = def.RateBurst
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}

	u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	var transport http.RoundTripper = otelhttp.NewTransport(base)
	if cfg.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
			Base:   transport,
		}
	}

	return &Client{
		logger:  logger,
		baseURL: u,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		limiter:         rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		userAgent:       cfg.UserAgent,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
	}, nil
}

// CurrentUser returns the principal the token authenticates as.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	ctx, span := tracer.Start(ctx, "CurrentUser")
	defer span.End()

	body, _, err := c.get(ctx, c.endpoint("/user", nil))
	if err != nil {
		return User{}, err
	}

	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return User{}, fmt.Errorf("failed to decode user: %w", err)
	}
	return u, nil
}

// ListRepositories lists every repository visible to the principal.
func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	ctx, span := tracer.Start(ctx, "ListRepositories")
	defer span.End()

	raws, err := c.listAll(ctx, "repositories", c.endpoint("/user/repos", nil))
	if err != nil {
		return nil, err
	}
	return decodeList(raws, func(r *Repository, raw json.RawMessage) { r.Raw = raw })
}

// ListIssues lists issues of every state updated at or after since. A nil
// since lists the whole history.
func (c *Client) ListIssues(ctx context.Context, repo Repository, since *time.Time) ([]Issue, error) {
	ctx, span := tracer.Start(ctx, "ListIssues")
	defer span.End()
	span.SetAttributes(attribute.String("repo", repo.FullName))

	q := url.Values{"state": {"all"}}
	if since != nil {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}

	raws, err := c.listAll(ctx, "issues", c.endpoint(path.Join("/repos", repo.FullName, "issues"), q))
	if err != nil {
		return nil, err
	}
	return decodeList(raws, func(i *Issue, raw json.RawMessage) { i.Raw = raw })
}

func (c *Client) ListComments(ctx context.Context, repo Repository, issue Issue) ([]Comment, error) {
	ctx, span := tracer.Start(ctx, "ListComments")
	defer span.End()
	span.SetAttributes(attribute.String("repo", repo.FullName), attribute.Int("issue", issue.Number))

	p := path.Join("/repos", repo.FullName, "issues", strconv.Itoa(issue.Number), "comments")
	raws, err := c.listAll(ctx, "comments", c.endpoint(p, nil))
	if err != nil {
		return nil, err
	}
	return decodeList(raws, func(cm *Comment, raw json.RawMessage) { cm.Raw = raw })
}

func (c *Client) ListTimeline(ctx context.Context, repo Repository, issue Issue) ([]TimelineEvent, error) {
	ctx, span := tracer.Start(ctx, "ListTimeline")
	defer span.End()
	span.SetAttributes(attribute.String("repo", repo.FullName), attribute.Int("issue", issue.Number))

	p := path.Join("/repos", repo.FullName, "issues", strconv.Itoa(issue.Number), "timeline")
	raws, err := c.listAll(ctx, "timeline", c.endpoint(p, nil))
	if err != nil {
		return nil, err
	}
	return decodeList(raws, func(t *TimelineEvent, raw json.RawMessage) { t.Raw = raw })
}

func (c *Client) endpoint(p string, q url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + p
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// listAll walks the rel="next" chain starting at first and returns the
// concatenated array elements of every page.
func (c *Client) listAll(ctx context.Context, kind, first string) ([]json.RawMessage, error) {
	u, err := url.Parse(first)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}
	q := u.Query()
	q.Set("per_page", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()

	var out []json.RawMessage
	next := u.String()
	pages := 0
	for next != "" {
		body, header, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}

		var page []json.RawMessage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to decode %s page: %w", kind, err)
		}
		out = append(out, page...)
		pages++

		next = nextLink(header.Get("Link"))
	}

	c.logger.Debug("listed", "kind", kind, "pages", pages, "items", len(out))
	return out, nil
}

// get performs a rate-limited GET, retrying rate-limited and server errors
// with exponential backoff.
func (c *Client) get(ctx context.Context, u string) ([]byte, http.Header, error) {
	var body []byte
	var header http.Header

	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to wait for rate limiter: %w", err))
		}

		b, h, err := c.doOnce(ctx, u)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.retryable() {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.logger.Warn("request failed, retrying", "url", u, "err", err)
			return err
		}
		body, header = b, h
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialInterval
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(eb, c.maxRetries)
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, nil, err
	}
	return body, header, nil
}

func (c *Client) doOnce(ctx context.Context, u string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		return nil, nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	requestDuration.Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
		if resp.StatusCode == http.StatusTooManyRequests ||
			(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
			apiErr.rateLimit = true
			c.logger.Warn("rate limited", "url", u, "reset", resp.Header.Get("X-RateLimit-Reset"))
		}
		return nil, nil, apiErr
	}

	return body, resp.Header, nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}

// nextLink extracts the rel="next" target from a Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		target := strings.TrimSpace(segs[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, attr := range segs[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				return strings.Trim(target, "<>")
			}
		}
	}
	return ""
}
