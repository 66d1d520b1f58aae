package bypass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Solver API timing: the service needs a minimum head start before the
// first poll, then answers become available within a few poll intervals.
const (
	solverInitialWait  = 15 * time.Second
	solverPollInterval = 5 * time.Second
	solverMaxWait      = 3 * time.Minute
)

// SolverClient talks to an external captcha-solving service: submit a task,
// poll for the solution, report the outcome.
type SolverClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger

	lastTaskID string
}

// NewSolverClient builds a solver client; baseURL empty means disabled and
// the constructor returns nil.
func NewSolverClient(baseURL, apiKey string, logger *zap.Logger) *SolverClient {
	if baseURL == "" {
		return nil
	}
	return &SolverClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type submitRequest struct {
	APIKey  string `json:"apiKey"`
	Type    string `json:"type"`
	Sitekey string `json:"sitekey,omitempty"`
	PageURL string `json:"pageUrl"`
}

type submitResponse struct {
	TaskID string `json:"taskId"`
	Error  string `json:"error,omitempty"`
}

type pollResponse struct {
	Status   string `json:"status"` // "pending" | "ready" | "failed"
	Solution string `json:"solution,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Solve submits the challenge and polls until a token is ready or the
// budget runs out.
func (c *SolverClient) Solve(ctx context.Context, ch Challenge) (string, error) {
	taskID, err := c.submit(ctx, ch)
	if err != nil {
		return "", err
	}
	c.lastTaskID = taskID
	c.logger.Debug("solver task submitted", zap.String("taskId", taskID), zap.String("type", string(ch.Type)))

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(solverInitialWait):
	}

	deadline := time.Now().Add(solverMaxWait)
	for time.Now().Before(deadline) {
		sol, done, err := c.poll(ctx, taskID)
		if err != nil {
			return "", err
		}
		if done {
			return sol, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(solverPollInterval):
		}
	}
	return "", fmt.Errorf("solver timed out after %s", solverMaxWait)
}

func (c *SolverClient) submit(ctx context.Context, ch Challenge) (string, error) {
	body, err := json.Marshal(submitRequest{
		APIKey:  c.apiKey,
		Type:    string(ch.Type),
		Sitekey: ch.Sitekey,
		PageURL: ch.PageURL,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("solver submit: %w", err)
	}
	defer resp.Body.Close()

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("solver submit decode: %w", err)
	}
	if sr.Error != "" {
		return "", fmt.Errorf("solver submit: %s", sr.Error)
	}
	if sr.TaskID == "" {
		return "", fmt.Errorf("solver submit: empty task id")
	}
	return sr.TaskID, nil
}

func (c *SolverClient) poll(ctx context.Context, taskID string) (solution string, done bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/result/"+taskID, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("solver poll: %w", err)
	}
	defer resp.Body.Close()

	var pr pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", false, fmt.Errorf("solver poll decode: %w", err)
	}
	switch pr.Status {
	case "ready":
		return pr.Solution, true, nil
	case "failed":
		return "", false, fmt.Errorf("solver task failed: %s", pr.Error)
	default:
		return "", false, nil
	}
}

// Report tells the service whether the injected solution worked. Errors are
// logged only; reporting is best effort.
func (c *SolverClient) Report(ctx context.Context, good bool) {
	if c.lastTaskID == "" {
		return
	}
	verdict := "bad"
	if good {
		verdict = "good"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/report/%s/%s", c.baseURL, c.lastTaskID, verdict), nil)
	if err != nil {
		return
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("solver report failed", zap.Error(err))
		return
	}
	resp.Body.Close()
}
