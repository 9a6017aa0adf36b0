package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/qasimio/operon/internal/ui"
)

// ErrUnavailable signals repeated transport failures. The run
// terminates when it surfaces.
var ErrUnavailable = errors.New("oracle_unavailable")

const (
	transportRetries = 3
	jsonRetries      = 2
)

// Oracle is the language-model contract the agent depends on.
// Implementations must return valid JSON when requireJSON is set.
type Oracle interface {
	Call(ctx context.Context, prompt string, requireJSON bool) (string, error)
}

// Client calls an OpenAI-compatible chat endpoint. Configuration is
// re-read from disk on every call.
type Client struct {
	RepoRoot string
	sink     ui.Sink
}

func NewClient(repoRoot string, sink ui.Sink) *Client {
	return &Client{RepoRoot: repoRoot, sink: sink}
}

func (c *Client) Call(ctx context.Context, prompt string, requireJSON bool) (string, error) {
	cfg := LoadConfig(c.RepoRoot)
	if cfg.APIKey == "" {
		return "", fmt.Errorf("%w: no api_key in %s and OPENAI_API_KEY unset", ErrUnavailable, ConfigFile)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	api := openai.NewClientWithConfig(clientCfg)

	text, err := c.complete(ctx, api, cfg, prompt)
	if err != nil {
		return "", err
	}
	if !requireJSON {
		return text, nil
	}

	for attempt := 0; ; attempt++ {
		if extracted, ok := ExtractJSON(text); ok {
			return extracted, nil
		}
		if attempt >= jsonRetries {
			return "", fmt.Errorf("no valid JSON after %d attempts", jsonRetries+1)
		}
		ui.Eventf(c.sink, "oracle", "response was not JSON, retrying (%d/%d)", attempt+1, jsonRetries)
		retryPrompt := prompt + "\n\nYour previous reply was not valid JSON. Respond with valid JSON only, no prose."
		text, err = c.complete(ctx, api, cfg, retryPrompt)
		if err != nil {
			return "", err
		}
	}
}

func (c *Client) complete(ctx context.Context, api *openai.Client, cfg Config, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= transportRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutS)*time.Second)
		resp, err := api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		cancel()
		if err == nil {
			if len(resp.Choices) == 0 {
				lastErr = errors.New("empty completion")
				continue
			}
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		ui.Eventf(c.sink, "oracle", "transport failure (%d/%d): %v", attempt, transportRetries, err)
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// ExtractJSON pulls a JSON object or array out of a model reply,
// tolerating code fences and surrounding prose.
func ExtractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)

	if fenced := insideFence(text); fenced != "" {
		text = fenced
	}

	// Scan from whichever opener appears first so a bare array is not
	// mistaken for its first element.
	pairs := [][2]byte{{'{', '}'}, {'[', ']'}}
	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		pairs = [][2]byte{{'[', ']'}, {'{', '}'}}
	}

	for _, pair := range pairs {
		start := strings.IndexByte(text, pair[0])
		if start < 0 {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			ch := text[i]
			if escaped {
				escaped = false
				continue
			}
			switch {
			case ch == '\\' && inString:
				escaped = true
			case ch == '"':
				inString = !inString
			case inString:
			case ch == pair[0]:
				depth++
			case ch == pair[1]:
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func insideFence(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return ""
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// Scripted replays canned responses in order. Test use only.
type Scripted struct {
	Responses []string
	Calls     []string
	Err       error
}

func (s *Scripted) Call(_ context.Context, prompt string, _ bool) (string, error) {
	s.Calls = append(s.Calls, prompt)
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Responses) == 0 {
		return "", fmt.Errorf("%w: script exhausted", ErrUnavailable)
	}
	next := s.Responses[0]
	if len(s.Responses) > 1 {
		s.Responses = s.Responses[1:]
	}
	return next, nil
}
