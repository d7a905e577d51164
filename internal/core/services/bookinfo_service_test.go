package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libtrack/internal/config"
	"libtrack/internal/pkg/cache"
)

func testBookInfoConfig(baseURL string) config.BookInfoConfig {
	return config.BookInfoConfig{
		BaseURL:       baseURL,
		APIKey:        "test-key",
		TimeoutSec:    2,
		CacheTTLHours: 1,
		RatePerSec:    100,
	}
}

func TestBookInfoService_LookupResolvesMetadata(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "9780006546061", r.URL.Query().Get("isbn"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		require.NoError(t, json.NewEncoder(w).Encode(bookInfoResponse{Items: []bookInfoItem{
			{
				ISBN:     "9780006546061",
				Title:    "One Hundred Years of Solitude",
				Author:   "Gabriel García Márquez",
				CoverURL: "https://covers.example/100.jpg",
			},
		}}))
	}))
	defer server.Close()

	svc := NewBookInfoService(testBookInfoConfig(server.URL), cache.New(time.Hour, 0))

	// Hyphenated input normalizes onto the same ISBN
	info := svc.Lookup(context.Background(), "978-0-00-654606-1")
	require.NotNil(t, info)
	assert.Equal(t, "One Hundred Years of Solitude", info.Title)
	assert.Equal(t, "https://covers.example/100.jpg", info.CoverURL)
	assert.Equal(t, 1, hits)

	// Second lookup is served from cache
	again := svc.Lookup(context.Background(), "9780006546061")
	require.NotNil(t, again)
	assert.Equal(t, 1, hits)
}

func TestBookInfoService_BlankISBNShortCircuits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no upstream call expected for a blank ISBN")
	}))
	defer server.Close()

	svc := NewBookInfoService(testBookInfoConfig(server.URL), cache.New(time.Hour, 0))

	assert.Nil(t, svc.Lookup(context.Background(), ""))
	assert.Nil(t, svc.Lookup(context.Background(), "  "))
	assert.Nil(t, svc.Lookup(context.Background(), "---"))
}

func TestBookInfoService_MissingISBNIsCachedNegatively(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		require.NoError(t, json.NewEncoder(w).Encode(bookInfoResponse{}))
	}))
	defer server.Close()

	svc := NewBookInfoService(testBookInfoConfig(server.URL), cache.New(time.Hour, 0))

	assert.Nil(t, svc.Lookup(context.Background(), "9799999999999"))
	assert.Nil(t, svc.Lookup(context.Background(), "9799999999999"))
	assert.Equal(t, 1, hits)
}

func TestBookInfoService_UpstreamErrorDegradesToNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := NewBookInfoService(testBookInfoConfig(server.URL), cache.New(time.Hour, 0))
	assert.Nil(t, svc.Lookup(context.Background(), "9780006546061"))
}

func TestBookInfoService_TimeoutDegradesToNil(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	cfg := testBookInfoConfig(server.URL)
	cfg.TimeoutSec = 1
	svc := NewBookInfoService(cfg, cache.New(time.Hour, 0))

	start := time.Now()
	assert.Nil(t, svc.Lookup(context.Background(), "9780006546061"))
	assert.Less(t, time.Since(start), 5*time.Second)
}
