// Package bot implements the conversation autoresponder: a per-conversation
// reply trigger with single-flight locking, backed by a pluggable text
// generator. The responder never suppresses a reply silently; when the
// generator fails it falls back to a fixed apology so the user always gets
// an answer.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bbBOZ/jellyspace-sync/internal/config"
)

// Turn is one entry of the conversation history handed to the generator.
type Turn struct {
	FromResponder bool
	Content       string
}

// Generator produces a reply to userMessage given recent history.
type Generator interface {
	Reply(ctx context.Context, userMessage string, history []Turn) (string, error)
}

// generatorHistoryWindow caps how many turns are forwarded upstream,
// independent of how much history the responder collects.
const generatorHistoryWindow = 8

const defaultSystemPrompt = "You are Jelly, a warm and playful chat companion. " +
	"Keep replies short, friendly and conversational."

// ChatClient is a Generator backed by an OpenAI-compatible chat-completions
// endpoint.
type ChatClient struct {
	url          string
	key          string
	model        string
	temperature  float64
	maxTokens    int
	systemPrompt string
	httpc        *http.Client
}

// NewChatClient builds a client from cfg.
func NewChatClient(cfg config.BotConfig) *ChatClient {
	return &ChatClient{
		url:          cfg.APIURL,
		key:          cfg.APIKey,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		systemPrompt: defaultSystemPrompt,
		httpc:        &http.Client{Timeout: 30 * time.Second},
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
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Reply sends the system prompt, the trailing history window and the user
// message upstream and returns the first choice.
func (c *ChatClient) Reply(ctx context.Context, userMessage string, history []Turn) (string, error) {
	msgs := make([]chatMessage, 0, len(history)+2)
	msgs = append(msgs, chatMessage{Role: "system", Content: c.systemPrompt})
	if len(history) > generatorHistoryWindow {
		history = history[len(history)-generatorHistoryWindow:]
	}
	for _, t := range history {
		role := "user"
		if t.FromResponder {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: t.Content})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: userMessage})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat completion status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("chat completion returned no content")
	}
	return out.Choices[0].Message.Content, nil
}
