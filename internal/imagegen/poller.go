// Package imagegen delivers AI-generated images asynchronously.
//
// The generate_ai_image tool starts a remote job and returns
// immediately; a Manager-owned goroutine polls the job status and
// delivers the resulting photos (or a failure notice) straight to the
// conversation, independent of the agent loop that started it.
package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vendora-ai/vendora/internal/vendorapi"
)

// Notifier sends messages to a conversation outside the agent loop.
// The Telegram bridge satisfies it.
type Notifier interface {
	SendText(ctx context.Context, conversationID, text string) error
	SendPhotoURL(ctx context.Context, conversationID, photoURL, caption string) error
}

// JobChecker is the slice of the backend client the poller needs.
type JobChecker interface {
	CheckImageJob(ctx context.Context, token, jobID string) (*vendorapi.JobStatus, error)
}

// Defaults for the poll cadence. Generation jobs typically finish in
// a few minutes; 40 attempts at 30s bounds a poll at about 20 minutes.
const (
	DefaultInterval    = 30 * time.Second
	DefaultMaxAttempts = 40
)

// Manager owns all outstanding image generation polls. Close cancels
// them and waits for the goroutines to drain, so shutdown is
// deterministic.
type Manager struct {
	checker     JobChecker
	notifier    Notifier
	logger      *slog.Logger
	interval    time.Duration
	maxAttempts int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a poll manager with the default cadence.
func NewManager(checker JobChecker, notifier Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		checker:     checker,
		notifier:    notifier,
		logger:      logger,
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetCadence overrides the poll interval and attempt bound.
func (m *Manager) SetCadence(interval time.Duration, maxAttempts int) {
	if interval > 0 {
		m.interval = interval
	}
	if maxAttempts > 0 {
		m.maxAttempts = maxAttempts
	}
}

// Watch starts polling jobID and delivers the outcome to
// conversationID. It returns immediately.
func (m *Manager) Watch(conversationID, token, jobID string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.poll(conversationID, token, jobID)
	}()
}

// Close cancels all outstanding polls and waits for them to finish.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) poll(conversationID, token, jobID string) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// The first check runs immediately; fast jobs should not wait out
	// a full interval. Later attempts pace on the ticker.
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-m.ctx.Done():
				m.logger.Info("image poll cancelled",
					"job_id", jobID,
					"conversation_id", conversationID,
				)
				return
			case <-ticker.C:
			}
		} else if m.ctx.Err() != nil {
			return
		}

		status, err := m.checker.CheckImageJob(m.ctx, token, jobID)
		if err != nil {
			m.logger.Warn("image job status check failed",
				"job_id", jobID,
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		switch {
		case status.Status == vendorapi.JobStatusCompleted:
			m.deliver(conversationID, jobID, status.Images)
			return
		case status.ErrorMessage != "":
			m.logger.Warn("image job failed",
				"job_id", jobID,
				"error", status.ErrorMessage,
			)
			m.notify(conversationID, fmt.Sprintf("❌ AI image generation failed:\n%s", status.ErrorMessage))
			return
		}

		m.logger.Debug("image job still pending",
			"job_id", jobID,
			"status", status.Status,
			"attempt", attempt,
		)
	}

	// Attempts exhausted without a terminal status. Tell the user
	// instead of going quiet.
	m.logger.Warn("image poll timed out",
		"job_id", jobID,
		"conversation_id", conversationID,
	)
	m.notify(conversationID, "⌛ AI image generation is taking longer than expected. Please try again later.")
}

// deliver sends every generated image to the conversation.
func (m *Manager) deliver(conversationID, jobID string, images []vendorapi.JobImage) {
	sent := 0
	for _, img := range images {
		if img.URL == "" || img.Type == "" {
			continue
		}
		caption := fmt.Sprintf("✅ %s image generated!", capitalize(img.Type))
		if err := m.notifier.SendPhotoURL(m.ctx, conversationID, img.URL, caption); err != nil {
			m.logger.Error("generated image delivery failed",
				"job_id", jobID,
				"conversation_id", conversationID,
				"error", err,
			)
			continue
		}
		sent++
	}

	m.logger.Info("image job delivered",
		"job_id", jobID,
		"conversation_id", conversationID,
		"images", sent,
	)

	if sent == 0 {
		m.notify(conversationID, "⚠️ AI image generation finished but produced no images.")
	}
}

func (m *Manager) notify(conversationID, text string) {
	if err := m.notifier.SendText(m.ctx, conversationID, text); err != nil {
		m.logger.Error("image poll notification failed",
			"conversation_id", conversationID,
			"error", err,
		)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
