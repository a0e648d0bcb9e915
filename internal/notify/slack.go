// Package notify posts operational alerts to a Slack incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/think-in-universe/nearai-cloud-server/internal/logging"
)

// Level is the severity shown in the alert.
type Level string

const (
	LevelInfo  Level = "💡INFO"
	LevelWarn  Level = "⚠️WARN"
	LevelError Level = "❌ERROR"
)

// Notifier sends alerts. Implementations must not block the caller on the
// network.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Slack logs every alert and, when a webhook is configured, posts it in the
// background as "<!channel> *tag@env:* *[LEVEL]* msg". Only errors mention
// the channel.
type Slack struct {
	webhookURL string
	tag        string
	env        string
	client     *http.Client
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewSlack creates a notifier. An empty webhookURL disables posting.
func NewSlack(webhookURL, tag, env string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		tag:        tag,
		env:        env,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logging.For("notify"),
	}
}

func (s *Slack) Info(msg string) {
	s.logger.Info(msg)
	s.send(LevelInfo, msg, false)
}

func (s *Slack) Warn(msg string) {
	s.logger.Warn(msg)
	s.send(LevelWarn, msg, false)
}

func (s *Slack) Error(msg string) {
	s.logger.Error(msg)
	s.send(LevelError, msg, true)
}

// Wait blocks until alerts already handed to the webhook are delivered or
// have failed. Called on shutdown.
func (s *Slack) Wait() {
	s.wg.Wait()
}

// Format renders an alert the way it appears in Slack.
func Format(tag, env string, level Level, msg string, channel bool) string {
	prefix := ""
	if channel {
		prefix = "<!channel>"
	}
	return fmt.Sprintf("%s *%s@%s:* *[%s]* %s", prefix, tag, env, level, msg)
}

func (s *Slack) send(level Level, msg string, channel bool) {
	if s.webhookURL == "" {
		return
	}

	text := Format(s.tag, s.env, level, msg, channel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
		defer cancel()

		if err := s.post(ctx, text); err != nil {
			s.logger.Error("failed to send slack alert", "level", string(level), "error", err)
		}
	}()
}

func (s *Slack) post(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
