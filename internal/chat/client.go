package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/raine/skinalyzer-bot/internal/remote"
)

const chatPath = "/chat"

// ErrRequestFailed is returned by Client.Ask for any failed exchange.
// Conversation recovers from it by appending FallbackReply.
var ErrRequestFailed = errors.New("chat request failed")

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply *string `json:"reply"`
}

// Client calls POST /chat. The remote service is stateless per call, so only
// the question is sent.
type Client struct {
	httpClient *resty.Client
}

// NewClient creates a chat client for the service at opts.BaseURL.
func NewClient(opts remote.Options) *Client {
	return &Client{httpClient: remote.NewClient(opts)}
}

// Ask sends question and returns the assistant's reply.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	res, err := remote.HandleError(c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(chatRequest{Message: question}).
		Post(chatPath))
	if err != nil {
		log.Error().Err(err).Msg("chat request failed")
		return "", fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	var resp chatResponse
	if err := json.Unmarshal(res.Body(), &resp); err != nil {
		return "", fmt.Errorf("%w: malformed response: %w", ErrRequestFailed, err)
	}
	if resp.Reply == nil || strings.TrimSpace(*resp.Reply) == "" {
		return "", fmt.Errorf("%w: response missing reply", ErrRequestFailed)
	}
	return *resp.Reply, nil
}
