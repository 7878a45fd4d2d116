// Package nominatim is a small client for the OpenStreetMap Nominatim
// search API, resolving a place name to coordinates and its
// administrative area.
package nominatim

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public OpenStreetMap instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at another Nominatim instance.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the client-side request rate. Zero or less disables it.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithEmail adds the contact address Nominatim asks heavy users to send.
func WithEmail(email string) Option {
	return func(c *Client) {
		c.email = email
	}
}

// WithLanguage sets the accept-language parameter for returned names.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// Client calls the Nominatim search endpoint. The public instance allows at
// most one request per second and requires an identifying User-Agent.
type Client struct {
	baseURL    string
	userAgent  string
	email      string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient returns a client that identifies itself with userAgent.
func NewClient(userAgent string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		userAgent:  userAgent,
		language:   "en",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
