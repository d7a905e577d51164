package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"libtrack/internal/config"
	"libtrack/internal/core/domain"
	"libtrack/internal/pkg/cache"
	"libtrack/internal/pkg/httpclient"
)

// BookInfoService looks up book metadata by ISBN. Lookups are best-effort:
// any failure resolves to nil and the negative result is cached, so a
// known-missing ISBN is not fetched again until the cache entry expires.
type BookInfoService struct {
	cfg     config.BookInfoConfig
	http    *httpclient.Client
	cache   *cache.Cache
	limiter *rate.Limiter
}

// NewBookInfoService creates a new metadata lookup client with an
// injected cache, so the cache can be swapped without touching the
// lookup logic.
func NewBookInfoService(cfg config.BookInfoConfig, c *cache.Cache) *BookInfoService {
	return &BookInfoService{
		cfg:     cfg,
		http:    httpclient.New("bookinfo-api"),
		cache:   c,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
}

type bookInfoItem struct {
	ISBN        string `json:"isbn"`
	ISBN13      string `json:"isbn13"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	PubDate     string `json:"pub_date"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
}

type bookInfoResponse struct {
	Items []bookInfoItem `json:"items"`
}

// Lookup resolves metadata for an ISBN, or nil. It never returns an
// error; enrichment must not be able to fail a reconciliation run.
func (s *BookInfoService) Lookup(ctx context.Context, isbn string) *domain.BookInfo {
	normalized := normalizeISBN(isbn)
	if normalized == "" {
		return nil
	}

	key := "isbn:" + normalized
	if cached, ok := s.cache.Get(key); ok {
		info, _ := cached.(*domain.BookInfo)
		return info
	}

	info := s.fetch(ctx, normalized)

	// Positive and negative results are both cached
	s.cache.Set(key, info)
	return info
}

// fetch performs the upstream call under the per-call timeout
func (s *BookInfoService) fetch(ctx context.Context, normalizedISBN string) *domain.BookInfo {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	defer cancel()

	if err := s.limiter.Wait(callCtx); err != nil {
		log.Printf("⚠️ Book info lookup rate-limited out for ISBN %s: %v", normalizedISBN, err)
		return nil
	}

	query := url.Values{}
	query.Set("isbn", normalizedISBN)
	if s.cfg.APIKey != "" {
		query.Set("key", s.cfg.APIKey)
	}

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/books?%s", s.cfg.BaseURL, query.Encode()), nil)
	if err != nil {
		log.Printf("⚠️ Book info request build failed for ISBN %s: %v", normalizedISBN, err)
		return nil
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(callCtx, req, httpclient.Options{
		Timeout:     s.cfg.Timeout(),
		MaxRetries:  1,
		BackoffBase: 100 * time.Millisecond,
	})
	if err != nil {
		log.Printf("⚠️ Book info lookup failed for ISBN %s: %v", normalizedISBN, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️ Book info lookup returned %d for ISBN %s", resp.StatusCode, normalizedISBN)
		return nil
	}

	var payload bookInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Printf("⚠️ Book info decode failed for ISBN %s: %v", normalizedISBN, err)
		return nil
	}
	if len(payload.Items) == 0 {
		return nil
	}

	item := payload.Items[0]
	return &domain.BookInfo{
		ISBN:        item.ISBN,
		ISBN13:      item.ISBN13,
		Title:       item.Title,
		Author:      item.Author,
		Publisher:   item.Publisher,
		PubDate:     item.PubDate,
		Description: item.Description,
		CoverURL:    item.CoverURL,
	}
}
