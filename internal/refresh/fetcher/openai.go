package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"facecards/internal/roster/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	maxResponse    = 1 << 20
)

const lookupPrompt = `You are a research assistant finding information about US Department of Defense leadership.

Find the CURRENT holder of this position: %q

Return a JSON object with these exact fields:
- name: Full name with rank/title (e.g., "General John Smith")
- title: Official position title
- photoUrl: URL to their official photo from defense.gov or service branch website
- category: One of: MILITARY_4STAR, MILITARY_3STAR, MAJOR_COMMAND, SERVICE_SECRETARY, CIVILIAN_SES, APPOINTEE, SECRETARIAT
- branch: One of: ARMY, NAVY, AIR_FORCE, MARINE_CORPS, SPACE_FORCE, COAST_GUARD (or null for civilians)
- organization: The organization they lead (e.g., "Joint Chiefs of Staff", "U.S. Army")

Only return the JSON object, no other text. If you cannot find current information, return null.`

// ErrMalformedAnswer means the model replied with something that is not a
// leader object. Retrying the same prompt is not expected to help.
var ErrMalformedAnswer = errors.New("malformed model answer")

// OpenAIClient looks positions up through an OpenAI-compatible
// chat-completions endpoint.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type leaderAnswer struct {
	Name         string  `json:"name"`
	Title        string  `json:"title"`
	PhotoURL     string  `json:"photoUrl"`
	Category     string  `json:"category"`
	Branch       *string `json:"branch"`
	Organization string  `json:"organization"`
}

// NewOpenAIClient builds a client. An empty baseURL means the public API.
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Lookup asks the model for the current holder of position. A nil candidate
// with a nil error means the model had no answer. Transport failures, 429 and
// 5xx responses are marked retryable.
func (c *OpenAIClient) Lookup(ctx context.Context, position string) (*models.CandidateLeader, error) {
	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: fmt.Sprintf(lookupPrompt, position)}},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.RetryableError(fmt.Errorf("calling chat completions API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain body so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponse)) //nolint:errcheck // best-effort drain before close.
		statusErr := fmt.Errorf("chat completions API returned status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, retry.RetryableError(statusErr)
		}
		return nil, statusErr
	}

	var result chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponse)).Decode(&result); err != nil {
		return nil, retry.RetryableError(fmt.Errorf("decoding chat response: %w", err))
	}
	if len(result.Choices) == 0 {
		return nil, nil
	}
	return parseAnswer(result.Choices[0].Message.Content)
}

func parseAnswer(content string) (*models.CandidateLeader, error) {
	content = strings.TrimSpace(content)
	if content == "" || content == "null" {
		return nil, nil
	}
	var answer *leaderAnswer
	if err := json.Unmarshal([]byte(content), &answer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}
	if answer == nil || answer.Name == "" || answer.Title == "" || answer.PhotoURL == "" {
		return nil, nil
	}

	cand := &models.CandidateLeader{
		Name:         answer.Name,
		Title:        answer.Title,
		PhotoURL:     answer.PhotoURL,
		Category:     models.Category(strings.ToUpper(strings.TrimSpace(answer.Category))),
		Organization: answer.Organization,
	}
	branch, err := models.ParseBranch(answer.Branch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}
	cand.Branch = branch
	return cand, nil
}
