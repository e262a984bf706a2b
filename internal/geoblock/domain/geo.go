package domain

// GeoRecord is the result of geolocating an IP address.
type GeoRecord struct {
	IP          string `json:"ip"`
	CountryCode string `json:"countryCode"`
	CountryName string `json:"countryName"`
	ISP         string `json:"isp,omitempty"`
}
