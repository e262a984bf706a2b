package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/haukened/geoblock/internal/geoblock/common/log"
	"github.com/haukened/geoblock/internal/geoblock/domain"
)

// DefaultBaseURL is the public ipgeolocation.io endpoint.
const DefaultBaseURL = "https://api.ipgeolocation.io"

// Error message constants for consistent error handling
const (
	errMissingAPIKey   = "geolocation API key is not configured"
	errInvalidIP       = "invalid IP address %q"
	errLoopback        = "loopback address %s is not geolocated"
	errBuildRequest    = "build request: %w"
	errRequestFailed   = "request failed: %w"
	errRateLimited     = "rate limited by provider"
	errUnexpectedCode  = "unexpected status %d"
	errDecodeFailed    = "decode failed: %w"
	errProviderMessage = "provider error: %s"
	errNoCountry       = "no country data for %s"
)

// maxBodyBytes bounds how much of a provider response is read.
const maxBodyBytes = 64 << 10

// IPGeolocation looks up addresses with the ipgeolocation.io "ipgeo" API.
type IPGeolocation struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	logger  log.Logger
}

// Options configures the ipgeolocation.io client.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// options to inject for testing purposes
	HTTPClient *http.Client
	Logger     log.Logger
}

// apiResponse is the subset of the ipgeo payload that is used.
type apiResponse struct {
	IP           string `json:"ip"`
	CountryCode2 string `json:"country_code2"`
	CountryName  string `json:"country_name"`
	ISP          string `json:"isp"`
	Message      string `json:"message"`
}

// NewIPGeolocation creates a client. The default timeout is 5 seconds and the
// default base URL is DefaultBaseURL. A missing API key is not an error; every
// lookup is then reported as unavailable.
func NewIPGeolocation(opts Options) *IPGeolocation {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &IPGeolocation{
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:  strings.TrimSpace(opts.APIKey),
		timeout: opts.Timeout,
		client:  opts.HTTPClient,
		logger:  opts.Logger,
	}
}

// ensureContextDeadline adds the client's timeout when ctx has no deadline.
func (g *IPGeolocation) ensureContextDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, g.timeout)
	}
	return ctx, nil
}

// Lookup resolves ip. Any failure is logged at warn level and reported as ok=false.
func (g *IPGeolocation) Lookup(ctx context.Context, ip string) (domain.GeoRecord, bool) {
	ctx, cancel := g.ensureContextDeadline(ctx)
	if cancel != nil {
		defer cancel()
	}

	rec, err := g.fetch(ctx, ip)
	if err != nil {
		g.logger.Warn(map[string]any{
			"ip":    ip,
			"error": err.Error(),
		}, "geolocation lookup failed")
		return domain.GeoRecord{}, false
	}
	return rec, true
}

func (g *IPGeolocation) fetch(ctx context.Context, ip string) (domain.GeoRecord, error) {
	if g.apiKey == "" {
		return domain.GeoRecord{}, fmt.Errorf(errMissingAPIKey)
	}
	addr, ok := parseAddr(ip)
	if !ok {
		return domain.GeoRecord{}, fmt.Errorf(errInvalidIP, ip)
	}
	if addr.IsLoopback() {
		return domain.GeoRecord{}, fmt.Errorf(errLoopback, addr)
	}

	q := url.Values{}
	q.Set("apiKey", g.apiKey)
	q.Set("ip", addr.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/ipgeo?"+q.Encode(), nil)
	if err != nil {
		return domain.GeoRecord{}, fmt.Errorf(errBuildRequest, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.GeoRecord{}, fmt.Errorf(errRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.GeoRecord{}, fmt.Errorf(errRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.GeoRecord{}, fmt.Errorf(errUnexpectedCode, resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return domain.GeoRecord{}, fmt.Errorf(errDecodeFailed, err)
	}
	if body.Message != "" {
		return domain.GeoRecord{}, fmt.Errorf(errProviderMessage, body.Message)
	}
	code := strings.ToUpper(strings.TrimSpace(body.CountryCode2))
	if code == "" {
		return domain.GeoRecord{}, fmt.Errorf(errNoCountry, addr)
	}

	return domain.GeoRecord{
		IP:          addr.String(),
		CountryCode: code,
		CountryName: strings.TrimSpace(body.CountryName),
		ISP:         strings.TrimSpace(body.ISP),
	}, nil
}

var _ Lookup = (*IPGeolocation)(nil)
