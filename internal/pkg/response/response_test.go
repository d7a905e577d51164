package response

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libtrack/internal/core/domain"
)

func doSyncFailure(t *testing.T, err error) (int, Response) {
	t.Helper()

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return SyncFailure(c, err)
	})

	resp, reqErr := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, reqErr)
	defer resp.Body.Close()

	body, reqErr := io.ReadAll(resp.Body)
	require.NoError(t, reqErr)

	var parsed Response
	require.NoError(t, json.Unmarshal(body, &parsed))
	return resp.StatusCode, parsed
}

func TestSyncFailureStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "auth failure",
			err:        &domain.AuthError{StatusCode: 401, Message: "bad credentials"},
			wantStatus: fiber.StatusUnauthorized,
			wantCode:   "AUTH_FAILED",
		},
		{
			name:       "upstream down",
			err:        &domain.UpstreamError{StatusCode: 503, Body: "maintenance"},
			wantStatus: fiber.StatusServiceUnavailable,
			wantCode:   "UPSTREAM_UNAVAILABLE",
		},
		{
			name:       "upstream rejected",
			err:        &domain.UpstreamError{StatusCode: 422, Body: "bad request"},
			wantStatus: fiber.StatusBadGateway,
			wantCode:   "UPSTREAM_REJECTED",
		},
		{
			name:       "timeout",
			err:        fmt.Errorf("fetch loans: %w", context.DeadlineExceeded),
			wantStatus: fiber.StatusGatewayTimeout,
			wantCode:   "EXTERNAL_TIMEOUT",
		},
		{
			name:       "unknown",
			err:        fmt.Errorf("something else broke"),
			wantStatus: fiber.StatusInternalServerError,
			wantCode:   "UNKNOWN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, parsed := doSyncFailure(t, tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, parsed.Code)
			assert.False(t, parsed.Success)
			assert.NotEmpty(t, parsed.Error)
		})
	}
}

// Wrapped fatal errors keep their classification through the fmt chain
func TestSyncFailureClassifiesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("fetch current loans: %w", &domain.AuthError{StatusCode: 401, Message: "expired"})
	status, parsed := doSyncFailure(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_FAILED", parsed.Code)
}
