package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/goccy/go-json"

	"libtrack/internal/config"
	"libtrack/internal/core/domain"
	"libtrack/internal/pkg/httpclient"
)

// LibraryService talks to the circulation system. The session (auth token
// plus session cookie from the login response) is private to one instance;
// concurrent sync runs must each call Login.
type LibraryService struct {
	cfg  config.LibraryConfig
	http *httpclient.Client

	mu      sync.Mutex
	token   string
	cookies []*http.Cookie
}

// NewLibraryService creates a new circulation system client
func NewLibraryService(cfg config.LibraryConfig) *LibraryService {
	return &LibraryService{
		cfg:  cfg,
		http: httpclient.New("library-api"),
	}
}

// ============================================================
// Wire types
// ============================================================

type loginRequest struct {
	CardNo   string `json:"card_no"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

type loanDTO struct {
	ID            string `json:"id"`
	BiblioID      int64  `json:"biblio_id"`
	Title         string `json:"title"`
	ISBN          string `json:"isbn"`
	Branch        string `json:"branch"`
	ChargeDate    string `json:"charge_date"`
	DueDate       string `json:"due_date"`
	RenewalCount  int    `json:"renewal_count"`
	DischargeDate string `json:"discharge_date,omitempty"`
}

type loanPageResponse struct {
	Total int       `json:"total"`
	Loans []loanDTO `json:"loans"`
}

type renewResponse struct {
	Success      bool   `json:"success"`
	DueDate      string `json:"due_date"`
	RenewalCount int    `json:"renewal_count"`
	Error        string `json:"error"`
}

// ============================================================
// Operations
// ============================================================

// Login authenticates against the circulation system. On success the
// session token and cookie are kept for subsequent calls; on failure the
// client stays unauthenticated and a domain.AuthError is returned.
func (s *LibraryService) Login(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{CardNo: s.cfg.CardNo, Password: s.cfg.Password})
	if err != nil {
		return fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.cfg.BaseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Single retry budget for login
	resp, err := s.http.Do(ctx, req, httpclient.Options{
		Timeout:     s.cfg.LibraryTimeout(),
		MaxRetries:  1,
		BackoffBase: s.cfg.Backoff(),
	})
	if err != nil {
		return fmt.Errorf("library login request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &domain.AuthError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var login loginResponse
	if err := json.Unmarshal(respBody, &login); err != nil {
		return fmt.Errorf("parse login response: %w", err)
	}
	if !login.Success {
		// Explicit failure code from the upstream means bad credentials
		return &domain.AuthError{StatusCode: http.StatusUnauthorized, Message: login.Message}
	}

	s.mu.Lock()
	s.token = login.Token
	s.cookies = resp.Cookies()
	s.mu.Unlock()

	return nil
}

// GetCurrentLoans fetches all active loans, paging until the upstream
// returns an empty page or the running total reaches the reported total
func (s *LibraryService) GetCurrentLoans(ctx context.Context) ([]domain.Loan, error) {
	dtos, err := s.fetchAllPages(ctx, "/api/loans/current")
	if err != nil {
		return nil, err
	}

	loans := make([]domain.Loan, 0, len(dtos))
	for _, dto := range dtos {
		loans = append(loans, domain.Loan{
			ExternalID:   dto.ID,
			BiblioID:     dto.BiblioID,
			Title:        dto.Title,
			ISBN:         dto.ISBN,
			Branch:       dto.Branch,
			ChargedAt:    parseUpstreamDate(dto.ChargeDate),
			DueAt:        parseUpstreamDate(dto.DueDate),
			RenewalCount: dto.RenewalCount,
		})
	}
	return loans, nil
}

// GetLoanHistory fetches all completed loan cycles, same pagination
// contract as GetCurrentLoans
func (s *LibraryService) GetLoanHistory(ctx context.Context) ([]domain.LoanHistoryEntry, error) {
	dtos, err := s.fetchAllPages(ctx, "/api/loans/history")
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LoanHistoryEntry, 0, len(dtos))
	for _, dto := range dtos {
		entries = append(entries, domain.LoanHistoryEntry{
			ExternalID:   dto.ID,
			BiblioID:     dto.BiblioID,
			Title:        dto.Title,
			ISBN:         dto.ISBN,
			Branch:       dto.Branch,
			ChargedAt:    parseUpstreamDate(dto.ChargeDate),
			DueAt:        parseUpstreamDate(dto.DueDate),
			RenewalCount: dto.RenewalCount,
			DischargedAt: parseUpstreamDate(dto.DischargeDate),
		})
	}
	return entries, nil
}

// RenewLoan asks the upstream to renew one loan. On success it returns
// the new due date and renewal count; when the upstream refuses (e.g. the
// title is reserved) it returns a domain.RenewalRejectedError. The caller
// persists the new values; the in-memory loan is not mutated here.
func (s *LibraryService) RenewLoan(ctx context.Context, externalID string) (*RenewalOutcome, error) {
	req, err := s.newAuthedRequest(http.MethodPost, fmt.Sprintf("/api/loans/%s/renew", externalID))
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(ctx, req, httpclient.Options{
		Timeout:     s.cfg.LibraryTimeout(),
		MaxRetries:  s.cfg.MaxRetries,
		BackoffBase: s.cfg.Backoff(),
	})
	if err != nil {
		return nil, fmt.Errorf("renew request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read renew response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var renew renewResponse
	if err := json.Unmarshal(respBody, &renew); err != nil {
		return nil, fmt.Errorf("parse renew response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !renew.Success {
		reason := renew.Error
		if reason == "" {
			reason = fmt.Sprintf("upstream status %d", resp.StatusCode)
		}
		return nil, &domain.RenewalRejectedError{Reason: reason}
	}

	return &RenewalOutcome{
		DueAt:        parseUpstreamDate(renew.DueDate),
		RenewalCount: renew.RenewalCount,
	}, nil
}

// ============================================================
// Internals
// ============================================================

// fetchAllPages pages through a loan endpoint and concatenates the results
func (s *LibraryService) fetchAllPages(ctx context.Context, path string) ([]loanDTO, error) {
	var all []loanDTO

	for page := 1; ; page++ {
		req, err := s.newAuthedRequest(http.MethodGet, fmt.Sprintf("%s?page=%d&size=%d", path, page, s.cfg.PageSize))
		if err != nil {
			return nil, err
		}

		resp, err := s.http.Do(ctx, req, httpclient.Options{
			Timeout:     s.cfg.LibraryTimeout(),
			MaxRetries:  s.cfg.MaxRetries,
			BackoffBase: s.cfg.Backoff(),
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s page %d: %w", path, page, err)
		}

		pageResp, err := decodeLoanPage(resp)
		if err != nil {
			return nil, err
		}

		all = append(all, pageResp.Loans...)

		if len(pageResp.Loans) == 0 || len(all) >= pageResp.Total {
			return all, nil
		}
	}
}

func decodeLoanPage(resp *http.Response) (*loanPageResponse, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var pageResp loanPageResponse
	if err := json.NewDecoder(resp.Body).Decode(&pageResp); err != nil {
		return nil, fmt.Errorf("decode loan page: %w", err)
	}
	return &pageResp, nil
}

// newAuthedRequest builds a request carrying the session token and cookie
func (s *LibraryService) newAuthedRequest(method, path string) (*http.Request, error) {
	s.mu.Lock()
	token := s.token
	cookies := s.cookies
	s.mu.Unlock()

	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}

	req, err := http.NewRequest(method, s.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req, nil
}
