package opensky

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flight-tracker/pkg/logger"
)

func TestClientFetchSendsBoundingBoxAndAuth(t *testing.T) {
	var gotQuery map[string]string
	var gotUser, gotPass string
	var gotAuth bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"lamin": r.URL.Query().Get("lamin"),
			"lomin": r.URL.Query().Get("lomin"),
			"lamax": r.URL.Query().Get("lamax"),
			"lomax": r.URL.Query().Get("lomax"),
		}
		gotUser, gotPass, gotAuth = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"time": 1700000000, "states": [` + validVector + `]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, Credentials{Username: "pilot", Password: "secret"}, time.Second, logger.NewNop())
	bbox := &BoundingBox{LatMin: 52.2, LatMax: 52.7, LonMin: 13.0, LonMax: 13.8}

	result := client.Fetch(context.Background(), bbox)
	require.True(t, result.OK(), "fetch failed: %v", result.Err)
	assert.EqualValues(t, 1700000000, result.Timestamp)
	assert.Len(t, result.Records, 1)

	assert.Equal(t, map[string]string{"lamin": "52.2", "lomin": "13", "lamax": "52.7", "lomax": "13.8"}, gotQuery)
	assert.True(t, gotAuth)
	assert.Equal(t, "pilot", gotUser)
	assert.Equal(t, "secret", gotPass)
}

func TestClientFetchWithoutBoundingBoxOrCredentials(t *testing.T) {
	var rawQuery string
	var hasAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _, hasAuth = r.BasicAuth()
		_, _ = w.Write([]byte(`{"time": 1, "states": null}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, Credentials{Username: "only-user"}, time.Second, logger.NewNop())
	result := client.Fetch(context.Background(), nil)
	require.True(t, result.OK())
	assert.Empty(t, rawQuery)
	assert.False(t, hasAuth)
	assert.Empty(t, result.Records)
}

func TestClientFetchUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	result := NewClient(srv.URL, Credentials{}, time.Second, logger.NewNop()).Fetch(context.Background(), nil)
	require.False(t, result.OK())

	var statusErr *UpstreamStatusError
	require.True(t, errors.As(result.Err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, statusErr.Error(), "429")
}

func TestClientFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"states": []}`))
	}))
	defer srv.Close()

	result := NewClient(srv.URL, Credentials{}, time.Second, logger.NewNop()).Fetch(context.Background(), nil)
	require.False(t, result.OK())

	var malformed *MalformedPayloadError
	assert.True(t, errors.As(result.Err, &malformed))
}

func TestClientFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	result := NewClient(url, Credentials{}, time.Second, logger.NewNop()).Fetch(context.Background(), nil)
	require.False(t, result.OK())

	var transport *TransportError
	assert.True(t, errors.As(result.Err, &transport))
}

func TestClientFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	result := NewClient(srv.URL, Credentials{}, 50*time.Millisecond, logger.NewNop()).Fetch(context.Background(), nil)
	require.False(t, result.OK())

	var transport *TransportError
	assert.True(t, errors.As(result.Err, &transport))
}

func TestClientFetchRejectsInvertedBoundingBox(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	bbox := &BoundingBox{LatMin: 55, LatMax: 50, LonMin: 5, LonMax: 15}
	result := NewClient(srv.URL, Credentials{}, time.Second, logger.NewNop()).Fetch(context.Background(), bbox)
	assert.False(t, result.OK())
	assert.False(t, called)
}

func TestBoundingBoxValidate(t *testing.T) {
	assert.NoError(t, BoundingBox{LatMin: 50, LatMax: 55, LonMin: 5, LonMax: 15}.Validate())
	assert.NoError(t, BoundingBox{LatMin: 1, LatMax: 1, LonMin: 2, LonMax: 2}.Validate())
	assert.Error(t, BoundingBox{LatMin: 55, LatMax: 50, LonMin: 5, LonMax: 15}.Validate())
	assert.Error(t, BoundingBox{LatMin: 50, LatMax: 55, LonMin: 15, LonMax: 5}.Validate())
	assert.Error(t, BoundingBox{LatMin: -91, LatMax: 55, LonMin: 5, LonMax: 15}.Validate())
	assert.Error(t, BoundingBox{LatMin: 50, LatMax: 55, LonMin: 5, LonMax: 181}.Validate())

	nan, inf := math.NaN(), math.Inf(1)
	assert.Error(t, BoundingBox{LatMin: nan, LatMax: nan, LonMin: nan, LonMax: nan}.Validate())
	assert.Error(t, BoundingBox{LatMin: 50, LatMax: 55, LonMin: nan, LonMax: 15}.Validate())
	assert.Error(t, BoundingBox{LatMin: 50, LatMax: inf, LonMin: 5, LonMax: 15}.Validate())
	assert.Error(t, BoundingBox{LatMin: 50, LatMax: 55, LonMin: -inf, LonMax: 15}.Validate())
}

func TestClientFetchRejectsNaNBoundingBox(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	nan := math.NaN()
	bbox := &BoundingBox{LatMin: nan, LatMax: nan, LonMin: nan, LonMax: nan}
	result := NewClient(srv.URL, Credentials{}, time.Second, logger.NewNop()).Fetch(context.Background(), bbox)
	assert.False(t, result.OK())
	assert.False(t, called)
}
