// Package advisor is the optional escalation path: when core extraction
// yields almost nothing, a remote vision-capable evaluator gets the page
// snapshot and may return a corrected result.
package advisor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"leaderhound/internal/collect"
	"leaderhound/internal/types"
)

// minCoreEntries is the extraction size below which escalation is allowed.
const minCoreEntries = 2

// Snapshot is what the evaluator sees.
type Snapshot struct {
	Domain     string   `json:"domain"`
	URL        string   `json:"url"`
	Markdown   string   `json:"markdown,omitempty"`
	BodyText   string   `json:"bodyText,omitempty"`
	Screenshot string   `json:"screenshot,omitempty"` // base64 PNG
	APICalls   []string `json:"apiCalls,omitempty"`
}

// Evaluation is the evaluator's verdict.
type Evaluation struct {
	Improved        bool          `json:"improved"`
	CorrectedResult []types.Entry `json:"correctedResult,omitempty"`
	Confidence      float64       `json:"confidence"`
	Phase           string        `json:"phase,omitempty"`
	Reason          string        `json:"reason,omitempty"`
}

// Client calls the remote evaluator.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// New builds the client; empty baseURL disables the advisor and returns
// nil.
func New(baseURL, apiKey string, logger *zap.Logger) *Client {
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 90 * time.Second},
		logger:  logger,
	}
}

// ShouldEscalate gates the advisor call on the core extraction size.
func ShouldEscalate(entryCount int) bool {
	return entryCount < minCoreEntries
}

// Evaluate sends the snapshot and returns the evaluator's verdict.
func (c *Client) Evaluate(ctx context.Context, domain string, cap *collect.Capture) (*Evaluation, error) {
	snap := Snapshot{
		Domain:   domain,
		URL:      cap.URL,
		Markdown: cap.Markdown,
		BodyText: cap.BodyText,
		APICalls: cap.APICalls,
	}
	if len(cap.Screenshot) > 0 {
		snap.Screenshot = base64.StdEncoding.EncodeToString(cap.Screenshot)
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("advisor request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("advisor status %d", resp.StatusCode)
	}

	var eval Evaluation
	if err := json.NewDecoder(resp.Body).Decode(&eval); err != nil {
		return nil, fmt.Errorf("advisor decode: %w", err)
	}
	c.logger.Debug("advisor evaluated",
		zap.String("domain", domain),
		zap.Bool("improved", eval.Improved),
		zap.String("phase", eval.Phase))
	return &eval, nil
}
