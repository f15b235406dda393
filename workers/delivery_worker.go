package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sender performs the actual message transport. The worker stays agnostic of
// how a (number, message) pair becomes a delivered message.
type Sender interface {
	Send(number, message string) error
}

// QueueClient polls the service's queue API over HTTP with the worker bearer
// token, the same way an out-of-process delivery agent would.
type QueueClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewQueueClient(baseURL, token string) *QueueClient {
	return &QueueClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Job mirrors the claim payload served by GET /api/queue/next.
type Job struct {
	ID          uint   `json:"id"`
	Destination string `json:"destination"`
	Payload     string `json:"payload"`
}

// GetJobs claims up to limit jobs from the queue.
func (c *QueueClient) GetJobs(ctx context.Context, limit int) ([]Job, error) {
	url := fmt.Sprintf("%s/api/queue/next?limit=%d", c.BaseURL, limit)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call queue API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("queue API returned status %d: %s", resp.StatusCode, string(body))
	}

	var jobs []Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("failed to decode queue response: %w", err)
	}
	return jobs, nil
}

// MarkJob reports a delivery outcome back to the queue.
func (c *QueueClient) MarkJob(ctx context.Context, jobID uint, status, errText string) error {
	payload := map[string]interface{}{"id": jobID, "status": status}
	if errText != "" {
		payload["error"] = errText
	}
	jsonData, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/queue/mark", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call queue API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("queue API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// PollQueue drives the delivery loop: claim a batch, deliver each message,
// report outcomes, sleep. Errors back the interval off with jitter instead of
// hammering the API. A batch in flight is always finished before shutdown;
// the queue's non-reclaiming in_progress state makes abandoning one costly.
func PollQueue(ctx context.Context, client *QueueClient, sender Sender, interval time.Duration) {
	log.Infof("delivery worker polling every %s", interval)
	backoff := interval

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("delivery worker stopped")
			return
		case <-timer.C:
		}

		jobs, err := client.GetJobs(ctx, 10)
		if err != nil {
			log.Errorf("failed to fetch jobs: %v", err)
			backoff = nextBackoff(backoff, interval)
			timer.Reset(backoff)
			continue
		}
		backoff = interval

		if len(jobs) > 0 {
			log.Infof("claimed %d job(s)", len(jobs))
		}
		for _, job := range jobs {
			// Reports use a fresh context so an in-flight batch is finished
			// and marked even when shutdown has been requested.
			reportCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := sender.Send(job.Destination, job.Payload); err != nil {
				log.Errorf("job %d delivery failed: %v", job.ID, err)
				if markErr := client.MarkJob(reportCtx, job.ID, "failed", err.Error()); markErr != nil {
					log.Errorf("failed to mark job %d: %v", job.ID, markErr)
				}
			} else {
				log.Infof("job %d delivered", job.ID)
				if markErr := client.MarkJob(reportCtx, job.ID, "sent", ""); markErr != nil {
					log.Errorf("failed to mark job %d: %v", job.ID, markErr)
				}
			}
			cancel()
		}

		timer.Reset(withJitter(interval))
	}
}

// nextBackoff doubles up to 8x the base interval.
func nextBackoff(current, base time.Duration) time.Duration {
	next := current * 2
	if max := base * 8; next > max {
		next = max
	}
	return withJitter(next)
}

// withJitter spreads wakeups by +/-10%.
func withJitter(d time.Duration) time.Duration {
	j := time.Duration(rand.Int63n(int64(d) / 5))
	return d - d/10 + j
}
