// Package llm talks to a local OpenAI-compatible inference server
// (llama.cpp / LM Studio style) over HTTP.
package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/paperdex/paperdex/internal/config"
)

// Distinct failure kinds so per-item logs can tell transport problems
// from protocol problems.
var (
	ErrTransport = errors.New("llm: transport failure")
	ErrStatus    = errors.New("llm: non-2xx response")
	ErrEnvelope  = errors.New("llm: malformed response envelope")
	ErrNoChoices = errors.New("llm: response has no choices")
)

// Client sends completion requests to one inference server. It is
// stateless apart from configuration and safe for concurrent use.
type Client struct {
	httpClient      *http.Client
	discoveryClient *http.Client
	baseURL         string
	sampling        config.SamplingConfig
}

// NewClient creates a client for the server at baseURL. The request
// timeout is generous on purpose: local inference over long contexts can
// take minutes and a short timeout kills legitimate slow generations.
func NewClient(baseURL string, sampling config.SamplingConfig) *Client {
	return &Client{
		httpClient:      &http.Client{Timeout: config.DefaultRequestTimeout},
		discoveryClient: &http.Client{Timeout: config.DefaultDiscoveryTimeout},
		baseURL:         strings.TrimRight(baseURL, "/"),
		sampling:        sampling,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	TopK        int           `json:"top_k"`
	MinP        float64       `json:"min_p"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
	Grammar     string        `json:"grammar,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
}

// Reply is one successful completion.
type Reply struct {
	Content   string // the structured answer text
	ModelUsed string // server-reported model, falls back to the requested alias
	Reasoning string // optional reasoning trace, empty if the model emits none
}

// SendPrompt posts one completion request. The grammar, when non-empty,
// is passed through verbatim to constrain the output format. isShutdown
// is polled immediately before sending and again after the response
// arrives; a (nil, nil) return means shutdown was observed and is not an
// error.
func (c *Client) SendPrompt(prompt, grammar, model string, isShutdown func() bool) (*Reply, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: empty prompt", ErrEnvelope)
	}

	payload := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.sampling.Temperature,
		TopP:        c.sampling.TopP,
		TopK:        c.sampling.TopK,
		MinP:        c.sampling.MinP,
		MaxTokens:   c.sampling.MaxTokens,
		Stream:      false,
		Grammar:     grammar,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	if isShutdown != nil && isShutdown() {
		return nil, nil
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if isShutdown != nil && isShutdown() {
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrStatus, resp.StatusCode, truncate(string(respBody), 500))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	if len(decoded.Choices) == 0 {
		return nil, ErrNoChoices
	}

	modelUsed := decoded.Model
	if modelUsed == "" {
		modelUsed = model
	}
	return &Reply{
		Content:   strings.TrimSpace(decoded.Choices[0].Message.Content),
		ModelUsed: modelUsed,
		Reasoning: decoded.Choices[0].Message.ReasoningContent,
	}, nil
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// DiscoverModelAlias asks the server which model it is serving and takes
// the first entry. Any failure logs a warning and falls back to a literal
// placeholder rather than aborting: attribution degrades, the batch does
// not.
func (c *Client) DiscoverModelAlias() string {
	resp, err := c.discoveryClient.Get(c.baseURL + "/v1/models")
	if err != nil {
		log.Printf("[LLM] WARN: model discovery failed: %v, using fallback alias '%s'", err, config.FallbackModelAlias)
		return config.FallbackModelAlias
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[LLM] WARN: model discovery returned status %d, using fallback alias '%s'", resp.StatusCode, config.FallbackModelAlias)
		return config.FallbackModelAlias
	}

	var decoded modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		log.Printf("[LLM] WARN: model discovery returned malformed JSON: %v, using fallback alias '%s'", err, config.FallbackModelAlias)
		return config.FallbackModelAlias
	}
	if len(decoded.Data) == 0 || decoded.Data[0].ID == "" {
		log.Printf("[LLM] WARN: model discovery returned no models, using fallback alias '%s'", config.FallbackModelAlias)
		return config.FallbackModelAlias
	}

	alias := decoded.Data[0].ID
	log.Printf("[LLM] detected model alias: '%s'", alias)
	return alias
}

// BaseURL returns the configured server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
