package impact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

const shadowPrompt = `You are auditing a deterministic rule-based scorer that flags high-impact AI research/news story clusters. Independently rate the cluster below.

Respond with a single JSON object:
{"score": <float 0.0-1.0, your impact estimate>, "label": <true|false, would you flag this as high-impact? fewer than 2%% of clusters deserve true>, "rationale": "<one sentence>"}

Be strict: "high-impact" means the kind of result that changes what practitioners do, not merely interesting work.

Cluster:
- Title: %s
- Takeaway: %s
- Content types: %s
- Distinct sources: %d
- Rule-based final score: %s

Return ONLY the JSON object, no other text.`

// ShadowResult is the side-by-side comparison payload persisted next to
// the rule-based assessment. Never used for gating.
type ShadowResult struct {
	Model     string  `json:"model"`
	Score     float64 `json:"score"`
	Label     bool    `json:"label"`
	Rationale string  `json:"rationale"`
	ScoredAt  string  `json:"scored_at"`
}

// ShadowScorer asks an LLM for an independent impact estimate so the
// calibration report can show rule-based and model opinions side by side.
type ShadowScorer struct {
	client   *http.Client
	provider string // "openai" or "anthropic"
	model    string
	apiKey   string
	baseURL  string
}

// NewShadowScorer creates a shadow scorer.
func NewShadowScorer(provider, model, apiKey, baseURL string) *ShadowScorer {
	if model == "" {
		switch provider {
		case "anthropic":
			model = "claude-sonnet-4-20250514"
		default:
			model = "gpt-4o-mini"
		}
	}
	return &ShadowScorer{
		client:   &http.Client{Timeout: 60 * time.Second},
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
	}
}

// Evaluate returns the shadow payload as a JSON string ready to persist.
func (s *ShadowScorer) Evaluate(ctx context.Context, c cluster.Cluster, res cluster.ScoreResult) (string, error) {
	finalStr := "n/a"
	if res.Final != nil {
		finalStr = fmt.Sprintf("%.3f", *res.Final)
	}
	prompt := fmt.Sprintf(shadowPrompt,
		c.Title, truncateStr(c.Takeaway, 500), strings.Join(c.ContentTypes, ", "),
		c.DistinctSourceCount, finalStr)

	var raw string
	var err error
	switch s.provider {
	case "anthropic":
		raw, err = s.callAnthropic(ctx, prompt)
	default:
		raw, err = s.callOpenAI(ctx, prompt)
	}
	if err != nil {
		return "", err
	}

	raw = stripCodeFence(strings.TrimSpace(raw))

	var result ShadowResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", fmt.Errorf("parse shadow response: %w\nraw: %s", err, truncateStr(raw, 500))
	}
	result.Model = fmt.Sprintf("%s/%s", s.provider, s.model)
	result.ScoredAt = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal shadow payload: %w", err)
	}
	return string(payload), nil
}

func (s *ShadowScorer) callOpenAI(ctx context.Context, prompt string) (string, error) {
	baseURL := s.baseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	payload := map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.1,
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("openai status %d: %v", resp.StatusCode, errResp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}

func (s *ShadowScorer) callAnthropic(ctx context.Context, prompt string) (string, error) {
	baseURL := s.baseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	payload := map[string]any{
		"model":      s.model,
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("anthropic status %d: %v", resp.StatusCode, errResp)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic: no content returned")
	}
	return result.Content[0].Text, nil
}

// stripCodeFence unwraps a markdown-fenced JSON response.
func stripCodeFence(raw string) string {
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
		raw = raw[3+idx+1:]
	}
	if strings.HasSuffix(raw, "```") {
		raw = raw[:len(raw)-3]
	}
	return strings.TrimSpace(raw)
}

func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
