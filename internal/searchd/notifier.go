package searchd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/shell-search/pkg/logger"
	"github.com/GoSim-25-26J-441/shell-search/pkg/utils"
)

// CallbackSecretHeader carries the shared secret on completion callbacks.
const CallbackSecretHeader = "X-Search-Callback-Secret"

var (
	ErrInvalidURL       = errors.New("invalid callback url")
	ErrMetadataEndpoint = errors.New("callback url targets a cloud metadata endpoint")
	ErrInternalHost     = errors.New("callback url targets an internal address")
)

// CategoryWinner is the compact form of a leaderboard holder in callbacks.
type CategoryWinner struct {
	Category string  `json:"category"`
	Shell    string  `json:"shell"`
	Score    float64 `json:"score"`
	Draw     float64 `json:"draw"`
}

// NotificationPayload represents the JSON payload sent to the callback URL
type NotificationPayload struct {
	RunID           string           `json:"run_id"`
	Status          RunStatus        `json:"status"`
	CreatedAtUnixMs int64            `json:"created_at_unix_ms"`
	StartedAtUnixMs int64            `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64            `json:"ended_at_unix_ms,omitempty"`
	Error           string           `json:"error,omitempty"`
	Winners         []CategoryWinner `json:"winners,omitempty"`
	Timestamp       int64            `json:"timestamp"` // When notification was sent
}

// Notifier posts run completion to callback URLs
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy
	wg         sync.WaitGroup
}

// NewNotifier creates a new notification service
func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 3,
		backoff:    utils.NewExponentialBackoff(time.Second, 30*time.Second, 2, true),
	}
}

// Notify sends a notification to the callback URL asynchronously
func (n *Notifier) Notify(callbackURL string, callbackSecret string, rec *RunRecord) {
	if callbackURL == "" {
		return
	}
	if rec == nil {
		logger.Warn("cannot notify: invalid run record", "callback_url", callbackURL)
		return
	}

	// Replace {run_id} template in callback URL if present
	finalURL := strings.ReplaceAll(callbackURL, "{run_id}", rec.ID)

	payload := NotificationPayload{
		RunID:           rec.ID,
		Status:          rec.Status,
		CreatedAtUnixMs: rec.CreatedAtUnixMs,
		StartedAtUnixMs: rec.StartedAtUnixMs,
		EndedAtUnixMs:   rec.EndedAtUnixMs,
		Error:           rec.Error,
		Timestamp:       time.Now().UTC().UnixMilli(),
	}
	if rec.Result != nil {
		for _, s := range rec.Result.Standings {
			if s.Evaluation == nil {
				continue
			}
			payload.Winners = append(payload.Winners, CategoryWinner{
				Category: string(s.Category),
				Shell:    s.Shell,
				Score:    s.Evaluation.Score,
				Draw:     s.Evaluation.Draw,
			})
		}
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.sendNotification(finalURL, callbackSecret, payload)
	}()
}

// Wait blocks until every pending notification has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// sendNotification performs the actual HTTP POST with retry logic
func (n *Notifier) sendNotification(callbackURL string, callbackSecret string, payload NotificationPayload) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload",
			"callback_url", callbackURL,
			"run_id", payload.RunID,
			"error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff.NextDelay(attempt - 1)
			logger.Debug("retrying notification",
				"callback_url", callbackURL,
				"run_id", payload.RunID,
				"attempt", attempt,
				"delay", delay)
			time.Sleep(delay)
		}

		req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(payloadJSON))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "shell-search/1.0")
		if callbackSecret != "" {
			req.Header.Set(CallbackSecretHeader, callbackSecret)
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			logger.Warn("notification attempt failed",
				"callback_url", callbackURL,
				"run_id", payload.RunID,
				"attempt", attempt+1,
				"error", err)
			continue
		}

		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		responseBody := string(bodyBytes)
		if len(responseBody) > 200 {
			responseBody = responseBody[:200] + "..."
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("notification sent",
				"run_id", payload.RunID,
				"status", payload.Status,
				"status_code", resp.StatusCode)
			return
		}

		lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		logger.Warn("notification returned non-2xx status",
			"callback_url", callbackURL,
			"run_id", payload.RunID,
			"status_code", resp.StatusCode,
			"response_body", responseBody,
			"attempt", attempt+1)
	}

	logger.Error("failed to send notification after retries",
		"callback_url", callbackURL,
		"run_id", payload.RunID,
		"status", payload.Status,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
}

var metadataHosts = []string{"169.254.169.254", "metadata.google.internal", "metadata", "fd00:ec2::254"}

// validateCallbackURL rejects callback targets that would let a client probe the
// server's network. "localhost" is allowed for development.
func validateCallbackURL(raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "{run_id}", "run"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	for _, m := range metadataHosts {
		if strings.EqualFold(host, m) {
			return fmt.Errorf("%w: %s", ErrMetadataEndpoint, host)
		}
	}
	if strings.EqualFold(host, "localhost") {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsUnspecified() || isPrivateIP(ip)) {
		return fmt.Errorf("%w: %s", ErrInternalHost, host)
	}
	return nil
}

var privateNets = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{
		"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16",
		"169.254.0.0/16", "127.0.0.0/8", "::1/128", "fc00::/7", "fe80::/10",
	} {
		_, n, _ := net.ParseCIDR(cidr)
		nets = append(nets, n)
	}
	return nets
}()

func isPrivateIP(ip net.IP) bool {
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
