package calibd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/utils"
)

// CallbackSecretHeader carries the run's callback secret, when one is set
const CallbackSecretHeader = "X-Fuzzycal-Callback-Secret"

// NotificationPayload is the JSON body posted to a run's callback URL
type NotificationPayload struct {
	RunID      string             `json:"run_id"`
	Status     models.RunStatus   `json:"status"`
	SchemeName string             `json:"scheme_name"`
	CreatedAt  time.Time          `json:"created_at"`
	StartedAt  time.Time          `json:"started_at,omitempty"`
	EndedAt    time.Time          `json:"ended_at,omitempty"`
	Error      string             `json:"error,omitempty"`
	Summary    *models.RunSummary `json:"summary,omitempty"`
	Timestamp  int64              `json:"timestamp"` // unix ms when sent
}

// Notifier posts run completion notifications with retries
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy
	wg         sync.WaitGroup
}

// NewNotifier creates a notifier from cfg. A zero cfg selects
// config.DefaultCallbacks.
func NewNotifier(cfg config.Callbacks) *Notifier {
	if cfg == (config.Callbacks{}) {
		cfg = config.DefaultCallbacks()
	}
	return &Notifier{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		maxRetries: cfg.MaxRetries,
		backoff:    utils.BackoffFromConfig(cfg.Backoff, cfg.BaseDelayMs, cfg.MaxDelayMs, utils.NewTimeSeededRandSource()),
	}
}

// Notify sends run to callbackURL asynchronously. A {run_id} placeholder in
// the URL is replaced with the run ID.
func (n *Notifier) Notify(callbackURL, callbackSecret string, run models.Run) {
	if callbackURL == "" {
		return
	}
	finalURL := strings.ReplaceAll(callbackURL, "{run_id}", run.ID)
	payload := NotificationPayload{
		RunID:      run.ID,
		Status:     run.Status,
		SchemeName: run.SchemeName,
		CreatedAt:  run.CreatedAt,
		StartedAt:  run.StartedAt,
		EndedAt:    run.EndedAt,
		Error:      run.Error,
		Summary:    run.Summary,
		Timestamp:  time.Now().UTC().UnixMilli(),
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.send(finalURL, callbackSecret, payload)
	}()
}

// Wait blocks until every pending notification has been delivered or given up
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) send(callbackURL, callbackSecret string, payload NotificationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload", "run_id", payload.RunID, "error", err)
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

		req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(body))
		if err != nil {
			// A malformed URL will not improve on retry.
			lastErr = fmt.Errorf("failed to create request: %w", err)
			break
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "fuzzycal/1.0")
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
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()

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
			"response_body", string(respBody),
			"attempt", attempt+1)
	}

	logger.Error("failed to send notification",
		"callback_url", callbackURL,
		"run_id", payload.RunID,
		"status", payload.Status,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
}
