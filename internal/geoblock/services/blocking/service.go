package blocking

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haukened/geoblock/internal/geoblock/common/clock"
	"github.com/haukened/geoblock/internal/geoblock/common/iso3166"
	"github.com/haukened/geoblock/internal/geoblock/common/log"
	"github.com/haukened/geoblock/internal/geoblock/domain"
	"github.com/haukened/geoblock/internal/geoblock/metrics"
)

// Error message constants for consistent error handling
const (
	errCodeRequired     = "%w: country code is required"
	errCodeInvalid      = "%w: invalid country code %q: must be a valid ISO 3166-1 alpha-2 code"
	errNameRequired     = "%w: country name is required"
	errNameMismatch     = "%w: country name %q does not match expected %q for code %s"
	errAlreadyBlocked   = "%s is already blocked: %w"
	errConflict         = "%s: %w"
	errCountryNotFound  = "%w: %s is not blocked"
	errDurationRange    = "%w: duration must be between %d and %d minutes"
	errPagination       = "%w: page and pageSize must be positive"
	errIPInvalid        = "%w: invalid IP address %q"
	errNoGeoData        = "%w: no geolocation data for %s: %w"
	msgBlocked          = "%s is blocked"
	msgUnblocked        = "%s is unblocked"
	msgTemporarilyBlock = "%s temporarily blocked until %s"
)

// Service implements the country blocking use cases over a Registry and a
// GeoLookup. It holds no state of its own between calls.
type Service struct {
	registry Registry
	geo      GeoLookup
	archive  AttemptArchive
	metrics  *metrics.Metrics
	clock    clock.Clock
	logger   log.Logger
	newID    func() string
}

// Options configures a Service. Archive and Metrics are optional.
type Options struct {
	Registry Registry
	Geo      GeoLookup
	Archive  AttemptArchive
	Metrics  *metrics.Metrics
	Clock    clock.Clock
	Logger   log.Logger
}

// New creates a Service. Registry and Geo are required.
func New(opts Options) (*Service, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Geo == nil {
		return nil, fmt.Errorf("geolocation lookup is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Service{
		registry: opts.Registry,
		geo:      opts.Geo,
		archive:  opts.Archive,
		metrics:  opts.Metrics,
		clock:    opts.Clock,
		logger:   opts.Logger,
		newID:    uuid.NewString,
	}, nil
}

// validateCode checks presence and then validity, returning the normalized
// code and its canonical name.
func validateCode(raw string) (code, name string, err error) {
	code = iso3166.Normalize(raw)
	if code == "" {
		return "", "", fmt.Errorf(errCodeRequired, domain.ErrValidation)
	}
	name, found := iso3166.Lookup(code)
	if !found {
		return "", "", fmt.Errorf(errCodeInvalid, domain.ErrValidation, code)
	}
	return code, name, nil
}

func validatePage(page, pageSize int) error {
	if page < 1 || pageSize < 1 {
		return fmt.Errorf(errPagination, domain.ErrValidation)
	}
	return nil
}

// Block permanently blocks a country. The request name must match the
// canonical name for the code, ignoring case and surrounding space.
func (s *Service) Block(_ context.Context, req BlockRequest) (Ack, error) {
	code, canonical, err := validateCode(req.CountryCode)
	if err != nil {
		return Ack{}, err
	}
	name := strings.TrimSpace(req.CountryName)
	if name == "" {
		return Ack{}, fmt.Errorf(errNameRequired, domain.ErrValidation)
	}
	if !strings.EqualFold(name, canonical) {
		return Ack{}, fmt.Errorf(errNameMismatch, domain.ErrValidation, name, canonical, code)
	}

	err = s.registry.TryAddPermanentBlock(domain.BlockedCountry{
		CountryCode: code,
		CountryName: canonical,
		BlockedAt:   s.clock.Now(),
	})
	if err != nil {
		return Ack{}, fmt.Errorf(errAlreadyBlocked, code, err)
	}

	s.logger.Info(map[string]any{"country_code": code}, "country blocked")
	return created(fmt.Sprintf(msgBlocked, code)), nil
}

// Unblock removes the permanent block for a country or, when there is none,
// its live temporal block.
func (s *Service) Unblock(_ context.Context, countryCode string) (Ack, error) {
	code, _, err := validateCode(countryCode)
	if err != nil {
		return Ack{}, err
	}
	kind := "permanent"
	if !s.registry.RemovePermanentBlock(code) {
		kind = "temporal"
		if !s.registry.RemoveTemporalBlock(code) {
			return Ack{}, fmt.Errorf(errCountryNotFound, domain.ErrNotFound, code)
		}
	}

	s.logger.Info(map[string]any{"country_code": code, "kind": kind}, "country unblocked")
	return ok(fmt.Sprintf(msgUnblocked, code)), nil
}

// TemporalBlock blocks a country for req.DurationMinutes.
func (s *Service) TemporalBlock(_ context.Context, req TemporalBlockRequest) (Ack, error) {
	code, _, err := validateCode(req.CountryCode)
	if err != nil {
		return Ack{}, err
	}
	if req.DurationMinutes < MinTemporalMinutes || req.DurationMinutes > MaxTemporalMinutes {
		return Ack{}, fmt.Errorf(errDurationRange, domain.ErrValidation, MinTemporalMinutes, MaxTemporalMinutes)
	}

	until := s.clock.Now().Add(time.Duration(req.DurationMinutes) * time.Minute)
	if err := s.registry.TryAddTemporalBlock(domain.TemporalBlock{CountryCode: code, BlockedUntil: until}); err != nil {
		return Ack{}, fmt.Errorf(errConflict, code, err)
	}

	s.logger.Info(map[string]any{
		"country_code":  code,
		"blocked_until": until.Format(time.RFC3339),
	}, "country temporarily blocked")
	return created(fmt.Sprintf(msgTemporarilyBlock, code, until.Format(time.RFC3339))), nil
}

// ListBlocked returns one page of permanently blocked countries, optionally
// filtered by a case-insensitive search on code or name.
func (s *Service) ListBlocked(_ context.Context, search string, page, pageSize int) (domain.Page[domain.BlockedCountry], error) {
	if err := validatePage(page, pageSize); err != nil {
		return domain.Page[domain.BlockedCountry]{}, err
	}
	items, total := s.registry.ListBlockedCountries(search, page, pageSize)
	return domain.Page[domain.BlockedCountry]{Items: items, TotalCount: total}, nil
}

// CheckIP reports whether the caller's country is blocked and records the
// attempt. Loopback callers are never blocked and are recorded as LOCAL
// without a lookup. When the caller cannot be geolocated the result is false
// and nothing is recorded. CheckIP does not fail because of a collaborator.
func (s *Service) CheckIP(ctx context.Context, caller Caller) (bool, error) {
	ip := strings.TrimSpace(caller.IP)
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		s.logger.Warn(map[string]any{"ip": ip}, "caller address is not an IP; treating as not blocked")
		s.metrics.ObserveCheck(metrics.ResultUnresolved)
		return false, nil
	}
	addr = addr.Unmap()

	if addr.IsLoopback() {
		s.logger.Debug(map[string]any{"ip": ip}, "local address; not blocked")
		s.record(ip, domain.LocalCountryCode, false, caller.UserAgent)
		s.metrics.ObserveCheck(metrics.ResultLocal)
		return false, nil
	}

	start := s.clock.Now()
	rec, found := s.geo.Lookup(ctx, addr.String())
	s.metrics.ObserveLookup(s.clock.Now().Sub(start))
	code := strings.ToUpper(strings.TrimSpace(rec.CountryCode))
	if !found || code == "" {
		s.logger.Warn(map[string]any{"ip": ip}, "failed to resolve country for IP; treating as not blocked")
		s.metrics.ObserveCheck(metrics.ResultUnresolved)
		return false, nil
	}

	blocked := s.registry.IsBlocked(code)
	s.record(ip, code, blocked, caller.UserAgent)
	if blocked {
		s.metrics.ObserveCheck(metrics.ResultBlocked)
	} else {
		s.metrics.ObserveCheck(metrics.ResultAllowed)
	}
	s.logger.Info(map[string]any{
		"ip":           ip,
		"country_code": code,
		"blocked":      blocked,
	}, "ip block check")
	return blocked, nil
}

// record appends an attempt to the registry and, if configured, the archive.
// Archive failures are logged and otherwise ignored.
func (s *Service) record(ip, code string, blocked bool, userAgent string) {
	entry := domain.BlockedAttemptLog{
		ID:          s.newID(),
		IPAddress:   ip,
		Timestamp:   s.clock.Now(),
		CountryCode: code,
		IsBlocked:   blocked,
		UserAgent:   strings.TrimSpace(userAgent),
	}
	s.registry.AppendAttempt(entry)

	if s.archive == nil {
		return
	}
	if err := s.archive.Append(entry); err != nil {
		s.logger.Error(map[string]any{
			"id":    entry.ID,
			"error": err.Error(),
		}, "failed to archive attempt")
	}
}

// ListAttempts returns one page of the attempt log, newest first.
func (s *Service) ListAttempts(_ context.Context, page, pageSize int) (domain.Page[domain.BlockedAttemptLog], error) {
	if err := validatePage(page, pageSize); err != nil {
		return domain.Page[domain.BlockedAttemptLog]{}, err
	}
	items, total := s.registry.ListAttempts(page, pageSize)
	return domain.Page[domain.BlockedAttemptLog]{Items: items, TotalCount: total}, nil
}

// LookupIP geolocates ip, or the caller's own address when ip is blank.
func (s *Service) LookupIP(ctx context.Context, ip string, caller Caller) (domain.GeoRecord, error) {
	target := strings.TrimSpace(ip)
	if target == "" {
		target = strings.TrimSpace(caller.IP)
	}
	addr, err := netip.ParseAddr(target)
	if err != nil {
		return domain.GeoRecord{}, fmt.Errorf(errIPInvalid, domain.ErrValidation, target)
	}

	start := s.clock.Now()
	rec, found := s.geo.Lookup(ctx, addr.Unmap().String())
	s.metrics.ObserveLookup(s.clock.Now().Sub(start))
	if !found {
		return domain.GeoRecord{}, fmt.Errorf(errNoGeoData, domain.ErrNotFound, target, domain.ErrUnavailable)
	}
	return rec, nil
}
