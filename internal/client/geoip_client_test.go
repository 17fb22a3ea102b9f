package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoIPClientAcceptsBothFieldSpellings(t *testing.T) {
	long := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"latitude":51.1694,"longitude":71.4491}`))
	}))
	defer long.Close()
	short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"lat":43.2389,"lon":76.8897}`))
	}))
	defer short.Close()

	lat, lon, err := NewGeoIPClient([]string{long.URL}).Lookup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 51.1694, lat)
	assert.Equal(t, 71.4491, lon)

	lat, lon, err = NewGeoIPClient([]string{short.URL}).Lookup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 43.2389, lat)
	assert.Equal(t, 76.8897, lon)
}

func TestGeoIPClientFallsThroughFailedEndpoints(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer broken.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"lat":43.2389,"lon":76.8897}`))
	}))
	defer working.Close()

	lat, lon, err := NewGeoIPClient([]string{broken.URL, working.URL}).Lookup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 43.2389, lat)
	assert.Equal(t, 76.8897, lon)
}

func TestGeoIPClientAllEndpointsFail(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	_, _, err := NewGeoIPClient([]string{broken.URL}).Lookup(context.Background())
	assert.Error(t, err)
}

func TestGeoIPClientNoCoordinatesInResponse(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"country":"KZ"}`))
	}))
	defer empty.Close()

	_, _, err := NewGeoIPClient([]string{empty.URL}).Lookup(context.Background())
	assert.Error(t, err)
}

func TestGeoIPClientNoEndpoints(t *testing.T) {
	_, _, err := NewGeoIPClient(nil).Lookup(context.Background())
	assert.Error(t, err)
}
