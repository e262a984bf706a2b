package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/haukened/geoblock/internal/geoblock/common/clock"
	"github.com/haukened/geoblock/internal/geoblock/domain"
)

func benchRegistry() *Registry {
	r := New(clock.RealClock{})
	now := time.Now()
	for i := 0; i < 26; i++ {
		for j := 0; j < 26; j++ {
			code := fmt.Sprintf("%c%c", 'A'+i, 'A'+j)
			if (i+j)%2 == 0 {
				r.AddPermanentBlock(domain.BlockedCountry{CountryCode: code, CountryName: "Country " + code, BlockedAt: now})
			} else {
				r.AddTemporalBlock(domain.TemporalBlock{CountryCode: code, BlockedUntil: now.Add(time.Hour)})
			}
		}
	}
	return r
}

func BenchmarkRegistry_IsBlocked(b *testing.B) {
	r := benchRegistry()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.IsBlocked("MN")
	}
}

func BenchmarkRegistry_IsBlocked_Parallel(b *testing.B) {
	r := benchRegistry()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = r.IsBlocked("QR")
		}
	})
}

func BenchmarkRegistry_ListBlockedCountries(b *testing.B) {
	r := benchRegistry()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.ListBlockedCountries("country a", 2, 10)
	}
}

func BenchmarkRegistry_SweepExpired(b *testing.B) {
	r := benchRegistry()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.SweepExpired()
	}
}
