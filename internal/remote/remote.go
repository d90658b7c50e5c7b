// Package remote builds the HTTP client shared by the analysis and chat
// endpoints of the skin analysis service.
package remote

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	userAgent       = "skinalyzer-bot/1.0"
	RequestIDHeader = "X-Request-ID"
)

// Options configures a service client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
}

// NewClient returns a resty client rooted at opts.BaseURL. Every request gets
// a fresh X-Request-ID unless one is already set.
func NewClient(opts Options) *resty.Client {
	c := resty.New().
		SetDebug(false).
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeaders(map[string]string{
			"Accept":     "application/json",
			"User-Agent": userAgent,
		})

	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}

	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.SetRateLimiter(rate.NewLimiter(rate.Limit(opts.RateLimit), burst))
	}

	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if req.Header.Get(RequestIDHeader) == "" {
			req.SetHeader(RequestIDHeader, uuid.NewString())
		}
		return nil
	})

	return c
}

// HandleError turns non-2xx responses into errors. Without this, failing
// responses would have nil error.
func HandleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if !res.IsSuccess() {
		return res, fmt.Errorf("request failed: %s %s (status: %d)", res.Request.Method, res.Request.URL, res.StatusCode())
	}
	return res, nil
}
