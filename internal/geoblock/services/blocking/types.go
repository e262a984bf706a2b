package blocking

import "net/http"

// Duration bounds for a temporal block, in minutes.
const (
	MinTemporalMinutes = 1
	MaxTemporalMinutes = 1440
)

// BlockRequest asks for a permanent block of CountryCode. CountryName must
// match the canonical name of the code.
type BlockRequest struct {
	CountryCode string `json:"countryCode"`
	CountryName string `json:"countryName"`
}

// TemporalBlockRequest asks for CountryCode to be blocked for DurationMinutes.
type TemporalBlockRequest struct {
	CountryCode     string `json:"countryCode"`
	DurationMinutes int    `json:"durationMinutes"`
}

// Caller identifies who is making a request.
type Caller struct {
	IP        string
	UserAgent string
}

// Ack is the result of a state-changing use case.
type Ack struct {
	Status  int
	Message string
}

func created(msg string) Ack { return Ack{Status: http.StatusCreated, Message: msg} }

func ok(msg string) Ack { return Ack{Status: http.StatusOK, Message: msg} }
