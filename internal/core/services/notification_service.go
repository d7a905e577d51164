package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"libtrack/internal/config"
	"libtrack/internal/core/domain"
)

const linePushURL = "https://api.line.me/v2/bot/message/push"

// NotificationService pushes messages to the patron over the LINE
// Messaging API. When no channel token or recipient is configured the
// service is disabled and every send becomes a no-op.
type NotificationService struct {
	channelToken string
	patronUserID string
	pushURL      string
	client       *http.Client
}

// NewNotificationService creates a new LINE notification service
func NewNotificationService(cfg config.LINEConfig) *NotificationService {
	s := &NotificationService{
		channelToken: cfg.ChannelToken,
		patronUserID: cfg.PatronUserID,
		pushURL:      linePushURL,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
	if !s.enabled() {
		log.Println("⚠️ LINE notifications disabled: channel token or patron user id not configured")
	}
	return s
}

func (s *NotificationService) enabled() bool {
	return s.channelToken != "" && s.patronUserID != ""
}

// NotifySyncFailure reports a failed sync run
func (s *NotificationService) NotifySyncFailure(kind domain.FailureKind, message string) {
	s.push(fmt.Sprintf("❌ Library sync failed (%s)\n%s", kind, message))
}

// NotifySyncSummary reports a finished sync run. Runs where nothing
// changed are not pushed; a nightly "0 added" message is just noise.
func (s *NotificationService) NotifySyncSummary(summary *domain.SyncSummary) {
	if summary == nil {
		return
	}
	if summary.Added == 0 && summary.Updated == 0 && summary.Returned == 0 {
		return
	}
	s.push(fmt.Sprintf(
		"📚 Library sync: %d on loan\n➕ %d added\n✏️ %d updated\n↩️ %d returned",
		summary.TotalCharges, summary.Added, summary.Updated, summary.Returned,
	))
}

// NotifyDueSoon reminds the patron about loans falling due
func (s *NotificationService) NotifyDueSoon(items []DueReminder) {
	if len(items) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⏰ %d loan(s) due soon:\n", len(items))
	for _, item := range items {
		fmt.Fprintf(&b, "• %s (due %s)\n", item.Title, item.DueAt.Format("Mon 2 Jan"))
	}
	s.push(strings.TrimRight(b.String(), "\n"))
}

// NotifyRenewals reports the outcome of an automatic renewal pass
func (s *NotificationService) NotifyRenewals(results []domain.RenewalResult) {
	if len(results) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("🔁 Renewal results:\n")
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(&b, "✅ %s: %s\n", r.Title, r.Message)
		} else {
			fmt.Fprintf(&b, "❌ %s: %s\n", r.Title, r.Message)
		}
	}
	s.push(strings.TrimRight(b.String(), "\n"))
}

// push sends one text message. Failures are logged and swallowed; the
// notification channel must never fail a run.
func (s *NotificationService) push(message string) {
	if !s.enabled() {
		return
	}

	payload := map[string]interface{}{
		"to": s.patronUserID,
		"messages": []map[string]interface{}{
			{
				"type": "text",
				"text": message,
			},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		log.Printf("⚠️ LINE push marshal failed: %v", err)
		return
	}

	req, err := http.NewRequest("POST", s.pushURL, bytes.NewBuffer(jsonData))
	if err != nil {
		log.Printf("⚠️ LINE push request failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.channelToken)

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("⚠️ LINE push failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("⚠️ LINE push error: %s", string(body))
	}
}
