package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"defect-service/internal/model"
	"defect-service/internal/utils"
)

type Location struct {
	Latitude  float64              `json:"latitude"`
	Longitude float64              `json:"longitude"`
	Source    model.LocationSource `json:"source"`
}

type ClientGPS struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// IPLocator is the outbound IP-geolocation boundary.
type IPLocator interface {
	Lookup(ctx context.Context) (lat, lon float64, err error)
}

const ipLocationTTL = 2 * time.Minute

// GeolocationResolver resolves event coordinates: a plausible client GPS
// reading wins, then the cached IP lookup, then a live one. Resolution never
// fails; when everything is exhausted the event gets UNKNOWN.
type GeolocationResolver struct {
	locator IPLocator
	log     zerolog.Logger

	mu        sync.Mutex
	cached    *Location
	fetchedAt time.Time
}

func NewGeolocationResolver(locator IPLocator, log zerolog.Logger) *GeolocationResolver {
	return &GeolocationResolver{locator: locator, log: log}
}

func (r *GeolocationResolver) Resolve(ctx context.Context, gps *ClientGPS) Location {
	if gps != nil && utils.PlausibleCoordinates(gps.Latitude, gps.Longitude) {
		return Location{
			Latitude:  gps.Latitude,
			Longitude: gps.Longitude,
			Source:    model.LocationSourceGPS,
		}
	}

	if loc := r.cachedLocation(); loc != nil {
		return *loc
	}

	if r.locator != nil {
		lat, lon, err := r.locator.Lookup(ctx)
		if err == nil && utils.PlausibleCoordinates(lat, lon) {
			loc := Location{Latitude: lat, Longitude: lon, Source: model.LocationSourceIPFallback}
			r.storeCached(loc)
			return loc
		}
		if err != nil {
			r.log.Warn().Err(err).Msg("ip geolocation lookup failed")
		}
	}

	return Location{Source: model.LocationSourceUnknown}
}

func (r *GeolocationResolver) cachedLocation() *Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached == nil || time.Since(r.fetchedAt) > ipLocationTTL {
		return nil
	}
	loc := *r.cached
	return &loc
}

func (r *GeolocationResolver) storeCached(loc Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = &loc
	r.fetchedAt = time.Now()
}
