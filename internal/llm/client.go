package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultBaseURL targets any OpenAI-compatible chat-completions API.
const defaultBaseURL = "https://openrouter.ai/api/v1"

// HTTPDoer abstracts the HTTP client used for outbound calls.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Message is one role-tagged chat message. A user message may carry
// image URLs in addition to text, in which case it is sent as a
// multimodal content-part list.
type Message struct {
	Role      string
	Text      string
	ImageURLs []string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request carries the messages and sampling controls for one call.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Response struct {
	Content string
	Usage   Usage
}

// RetryPolicy bounds the retry loop for transient failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Client issues chat-completion calls against an OpenAI-compatible
// endpoint. It holds no per-call state.
type Client struct {
	APIKey      string
	BaseURL     string
	Model       string
	HTTPClient  HTTPDoer
	CallTimeout time.Duration
	Retry       RetryPolicy
}

// New constructs a client with explicit settings.
func New(model, apiKey, baseURL string, client HTTPDoer) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		APIKey:      apiKey,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Model:       model,
		HTTPClient:  client,
		CallTimeout: 60 * time.Second,
		Retry:       RetryPolicy{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 30 * time.Second},
	}, nil
}

// FromEnv builds a client from LLM_MODEL, LLM_API_KEY and LLM_BASE_URL.
func FromEnv(client HTTPDoer) (*Client, error) {
	return New(
		strings.TrimSpace(os.Getenv("LLM_MODEL")),
		strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		strings.TrimSpace(os.Getenv("LLM_BASE_URL")),
		client,
	)
}

// --- wire types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func toWireMessage(m Message) chatMessage {
	if len(m.ImageURLs) == 0 {
		return chatMessage{Role: m.Role, Content: m.Text}
	}
	parts := make([]contentPart, 0, len(m.ImageURLs)+1)
	parts = append(parts, contentPart{Type: "text", Text: m.Text})
	for _, u := range m.ImageURLs {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: u}})
	}
	return chatMessage{Role: m.Role, Content: parts}
}

// Complete issues one chat completion, retrying transient failures with
// exponential backoff. A server-supplied Retry-After hint overrides the
// computed backoff. After exhausting retries the last classified
// failure is surfaced.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	var lastErr *Error
	for attempt := 0; attempt <= c.Retry.MaxRetries; attempt++ {
		resp, err := c.call(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !errors.As(err, &lastErr) {
			return nil, err
		}
		if !lastErr.Retryable() || attempt >= c.Retry.MaxRetries {
			break
		}
		delay := min(c.Retry.BaseDelay<<attempt, c.Retry.MaxDelay)
		if lastErr.RetryAfter > 0 {
			delay = lastErr.RetryAfter
		}
		log.Printf("llm: %s, retrying in %s (attempt %d/%d)", lastErr.Kind, delay, attempt+1, c.Retry.MaxRetries)
		select {
		case <-ctx.Done():
			return nil, &Error{Kind: KindTimeout, Message: ctx.Err().Error()}
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// call performs a single attempt with the per-call time budget.
func (c *Client) call(ctx context.Context, req Request) (*Response, error) {
	callCtx := ctx
	if c.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.CallTimeout)
		defer cancel()
	}

	messages := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, toWireMessage(m))
	}
	payload, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, &Error{Kind: KindTimeout, Message: fmt.Sprintf("call exceeded %s budget", c.CallTimeout)}
		}
		return nil, &Error{Kind: KindNetworkError, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, string(body), resp.Header)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{Kind: KindUnknown, Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, &Error{Kind: KindUnknown, Status: resp.StatusCode, Message: "no usable completion in response"}
	}
	return &Response{Content: parsed.Choices[0].Message.Content, Usage: parsed.Usage}, nil
}

// classifyStatus maps an upstream HTTP failure onto the closed taxonomy.
func classifyStatus(status int, body string, header http.Header) *Error {
	e := &Error{Status: status, Message: strings.TrimSpace(body), RetryAfter: parseRetryAfter(header)}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindInvalidAPIKey
	case status == http.StatusTooManyRequests:
		if strings.Contains(strings.ToLower(body), "quota") {
			e.Kind = KindQuotaExceeded
		} else {
			e.Kind = KindRateLimit
		}
	case status >= 500:
		e.Kind = KindServerError
	default:
		e.Kind = KindInvalidRequest
	}
	return e
}

func parseRetryAfter(header http.Header) time.Duration {
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
