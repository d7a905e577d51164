package services

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libtrack/internal/config"
	"libtrack/internal/core/domain"
)

type linePushPayload struct {
	To       string `json:"to"`
	Messages []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"messages"`
}

func newTestNotifier(t *testing.T) (*NotificationService, *[]linePushPayload) {
	t.Helper()

	var pushes []linePushPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer channel-token", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload linePushPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		pushes = append(pushes, payload)
	}))
	t.Cleanup(server.Close)

	svc := NewNotificationService(config.LINEConfig{
		ChannelToken: "channel-token",
		PatronUserID: "U1234567890",
	})
	svc.pushURL = server.URL
	return svc, &pushes
}

func TestNotificationService_SyncSummaryPush(t *testing.T) {
	svc, pushes := newTestNotifier(t)

	svc.NotifySyncSummary(&domain.SyncSummary{
		TotalCharges: 5,
		Added:        2,
		Updated:      1,
		Unchanged:    2,
		Returned:     1,
	})

	require.Len(t, *pushes, 1)
	push := (*pushes)[0]
	assert.Equal(t, "U1234567890", push.To)
	require.Len(t, push.Messages, 1)
	assert.Equal(t, "text", push.Messages[0].Type)
	assert.Contains(t, push.Messages[0].Text, "5 on loan")
	assert.Contains(t, push.Messages[0].Text, "2 added")
}

func TestNotificationService_QuietRunIsNotPushed(t *testing.T) {
	svc, pushes := newTestNotifier(t)

	svc.NotifySyncSummary(&domain.SyncSummary{TotalCharges: 5, Unchanged: 5})
	svc.NotifyDueSoon(nil)
	svc.NotifyRenewals(nil)

	assert.Empty(t, *pushes)
}

func TestNotificationService_DueSoonReminderListsTitles(t *testing.T) {
	svc, pushes := newTestNotifier(t)

	due := time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)
	svc.NotifyDueSoon([]DueReminder{
		{Title: "One Hundred Years of Solitude", DueAt: due},
		{Title: "Pride and Prejudice", DueAt: due.AddDate(0, 0, 1)},
	})

	require.Len(t, *pushes, 1)
	text := (*pushes)[0].Messages[0].Text
	assert.Contains(t, text, "2 loan(s) due soon")
	assert.Contains(t, text, "One Hundred Years of Solitude")
	assert.Contains(t, text, "Pride and Prejudice")
}

func TestNotificationService_DisabledWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no push expected when notifications are disabled")
	}))
	defer server.Close()

	svc := NewNotificationService(config.LINEConfig{})
	svc.pushURL = server.URL

	svc.NotifySyncFailure(domain.FailureAuth, "login failed")
	svc.NotifySyncSummary(&domain.SyncSummary{Added: 1})
}
