package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTemporalBlock_Active(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		until time.Time
		want  bool
	}{
		{"future", now.Add(time.Minute), true},
		{"exactly now", now, false},
		{"past", now.Add(-time.Nanosecond), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := TemporalBlock{CountryCode: "FR", BlockedUntil: tt.until}
			assert.Equal(t, tt.want, b.Active(now))
		})
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name               string
		total, page, size  int
		wantStart, wantEnd int
	}{
		{"first page", 25, 1, 10, 0, 10},
		{"middle page", 25, 2, 10, 10, 20},
		{"partial last page", 25, 3, 10, 20, 25},
		{"past the end", 25, 4, 10, 25, 25},
		{"empty set", 0, 1, 10, 0, 0},
		{"page size larger than set", 3, 1, 50, 0, 3},
		{"clamped page", 5, 0, 2, 0, 2},
		{"clamped size", 5, 2, 0, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := Paginate(tt.total, tt.page, tt.size)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", fmt.Errorf("%w: country code is required", ErrValidation), http.StatusBadRequest},
		{"conflict", fmt.Errorf("%w: US is already blocked", ErrConflict), http.StatusConflict},
		{"not found", fmt.Errorf("%w: country", ErrNotFound), http.StatusNotFound},
		{"unavailable", ErrUnavailable, http.StatusNotFound},
		{"double wrapped", fmt.Errorf("outer: %w", fmt.Errorf("%w: inner", ErrConflict)), http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}
