package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/haukened/geoblock/internal/geoblock/common/clock"
	"github.com/haukened/geoblock/internal/geoblock/domain"
)

var (
	// ErrPermanentExists is returned when a code already has a permanent block.
	ErrPermanentExists = fmt.Errorf("%w: country is already permanently blocked", domain.ErrConflict)
	// ErrTemporalExists is returned when a code already has a live temporal block.
	ErrTemporalExists = fmt.Errorf("%w: country is already temporarily blocked", domain.ErrConflict)
)

// Stats is a point-in-time count of each collection.
type Stats struct {
	Permanent int
	Temporal  int
	Attempts  int
}

// Registry is the in-memory owner of permanent blocks, temporal blocks, and the
// attempt log. Each collection has its own lock. Operations that touch both
// block collections take permMu before tempMu, always in that order; logMu is
// never held together with either.
type Registry struct {
	clock clock.Clock

	permMu    sync.RWMutex
	permanent map[string]domain.BlockedCountry

	tempMu   sync.RWMutex
	temporal map[string]domain.TemporalBlock

	logMu    sync.RWMutex
	attempts []domain.BlockedAttemptLog
}

// New creates an empty Registry. A nil clock falls back to the real clock.
func New(clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Registry{
		clock:     clk,
		permanent: make(map[string]domain.BlockedCountry),
		temporal:  make(map[string]domain.TemporalBlock),
	}
}

// key normalizes a country code for storage and lookup.
func key(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// AddPermanentBlock inserts or overwrites the permanent block for entry.CountryCode.
func (r *Registry) AddPermanentBlock(entry domain.BlockedCountry) {
	entry.CountryCode = key(entry.CountryCode)

	r.permMu.Lock()
	r.permanent[entry.CountryCode] = entry
	r.permMu.Unlock()
}

// TryAddPermanentBlock inserts entry unless the code is already blocked
// permanently or by a live temporal block. The check and the insert happen
// under the same locks, so of two concurrent calls for one code exactly one
// succeeds.
func (r *Registry) TryAddPermanentBlock(entry domain.BlockedCountry) error {
	entry.CountryCode = key(entry.CountryCode)

	r.permMu.Lock()
	defer r.permMu.Unlock()
	r.tempMu.RLock()
	defer r.tempMu.RUnlock()

	if _, ok := r.permanent[entry.CountryCode]; ok {
		return ErrPermanentExists
	}
	if tb, ok := r.temporal[entry.CountryCode]; ok && tb.Active(r.clock.Now()) {
		return ErrTemporalExists
	}
	r.permanent[entry.CountryCode] = entry
	return nil
}

// RemovePermanentBlock deletes the permanent block for code and reports
// whether one was present.
func (r *Registry) RemovePermanentBlock(code string) bool {
	code = key(code)

	r.permMu.Lock()
	defer r.permMu.Unlock()

	if _, ok := r.permanent[code]; !ok {
		return false
	}
	delete(r.permanent, code)
	return true
}

// ListBlockedCountries returns one page of permanent blocks ordered by code,
// and the number of blocks matching searchTerm. A non-blank searchTerm matches
// case-insensitively as a substring of the code or the name. page and pageSize
// are 1-based and validated by the caller.
func (r *Registry) ListBlockedCountries(searchTerm string, page, pageSize int) ([]domain.BlockedCountry, int) {
	needle := strings.ToLower(strings.TrimSpace(searchTerm))

	r.permMu.RLock()
	matched := make([]domain.BlockedCountry, 0, len(r.permanent))
	for _, bc := range r.permanent {
		if needle == "" ||
			strings.Contains(strings.ToLower(bc.CountryCode), needle) ||
			strings.Contains(strings.ToLower(bc.CountryName), needle) {
			matched = append(matched, bc)
		}
	}
	r.permMu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CountryCode < matched[j].CountryCode
	})

	start, end := domain.Paginate(len(matched), page, pageSize)
	items := make([]domain.BlockedCountry, end-start)
	copy(items, matched[start:end])
	return items, len(matched)
}

// IsBlocked reports whether code has a permanent block or a live temporal block.
func (r *Registry) IsBlocked(code string) bool {
	code = key(code)

	r.permMu.RLock()
	defer r.permMu.RUnlock()
	if _, ok := r.permanent[code]; ok {
		return true
	}

	r.tempMu.RLock()
	defer r.tempMu.RUnlock()
	tb, ok := r.temporal[code]
	return ok && tb.Active(r.clock.Now())
}

// IsTemporarilyBlocked reports whether code has a live temporal block,
// ignoring permanent blocks.
func (r *Registry) IsTemporarilyBlocked(code string) bool {
	code = key(code)

	r.tempMu.RLock()
	defer r.tempMu.RUnlock()
	tb, ok := r.temporal[code]
	return ok && tb.Active(r.clock.Now())
}

// IsPermanentlyBlocked reports whether code has a permanent block,
// ignoring temporal blocks.
func (r *Registry) IsPermanentlyBlocked(code string) bool {
	code = key(code)

	r.permMu.RLock()
	defer r.permMu.RUnlock()
	_, ok := r.permanent[code]
	return ok
}

// AddTemporalBlock inserts or overwrites the temporal block for entry.CountryCode.
func (r *Registry) AddTemporalBlock(entry domain.TemporalBlock) {
	entry.CountryCode = key(entry.CountryCode)

	r.tempMu.Lock()
	r.temporal[entry.CountryCode] = entry
	r.tempMu.Unlock()
}

// TryAddTemporalBlock inserts entry unless the code already has a live
// temporal block (checked first) or a permanent block. An expired entry that
// has not been swept yet is replaced.
func (r *Registry) TryAddTemporalBlock(entry domain.TemporalBlock) error {
	entry.CountryCode = key(entry.CountryCode)

	r.permMu.RLock()
	defer r.permMu.RUnlock()
	r.tempMu.Lock()
	defer r.tempMu.Unlock()

	if tb, ok := r.temporal[entry.CountryCode]; ok && tb.Active(r.clock.Now()) {
		return ErrTemporalExists
	}
	if _, ok := r.permanent[entry.CountryCode]; ok {
		return ErrPermanentExists
	}
	r.temporal[entry.CountryCode] = entry
	return nil
}

// RemoveTemporalBlock deletes the temporal entry for code and reports whether
// it was still live. An expired entry is dropped but reported as not removed.
func (r *Registry) RemoveTemporalBlock(code string) bool {
	code = key(code)

	r.tempMu.Lock()
	defer r.tempMu.Unlock()

	tb, ok := r.temporal[code]
	if !ok {
		return false
	}
	delete(r.temporal, code)
	return tb.Active(r.clock.Now())
}

// SweepExpired removes every temporal block whose BlockedUntil is at or
// before the current instant and returns how many were removed. Each entry is
// judged by the value held at the moment it is examined, under the write lock,
// so an entry refreshed by a concurrent insert is never dropped.
func (r *Registry) SweepExpired() int {
	r.tempMu.Lock()
	defer r.tempMu.Unlock()

	now := r.clock.Now()
	removed := 0
	for code, tb := range r.temporal {
		if !tb.Active(now) {
			delete(r.temporal, code)
			removed++
		}
	}
	return removed
}

// AppendAttempt appends entry to the attempt log.
func (r *Registry) AppendAttempt(entry domain.BlockedAttemptLog) {
	r.logMu.Lock()
	r.attempts = append(r.attempts, entry)
	r.logMu.Unlock()
}

// ListAttempts returns one page of the attempt log, newest first, and the
// full log size. Entries with equal timestamps are returned most recently
// appended first.
func (r *Registry) ListAttempts(page, pageSize int) ([]domain.BlockedAttemptLog, int) {
	r.logMu.RLock()
	ordered := make([]domain.BlockedAttemptLog, len(r.attempts))
	for i, a := range r.attempts {
		ordered[len(r.attempts)-1-i] = a
	}
	r.logMu.RUnlock()

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.After(ordered[j].Timestamp)
	})

	start, end := domain.Paginate(len(ordered), page, pageSize)
	return ordered[start:end:end], len(ordered)
}

// Stats returns the current size of each collection.
func (r *Registry) Stats() Stats {
	var s Stats

	r.permMu.RLock()
	s.Permanent = len(r.permanent)
	r.permMu.RUnlock()

	r.tempMu.RLock()
	s.Temporal = len(r.temporal)
	r.tempMu.RUnlock()

	r.logMu.RLock()
	s.Attempts = len(r.attempts)
	r.logMu.RUnlock()

	return s
}
