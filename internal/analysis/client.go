// Package analysis submits staged images to the remote skin analysis service.
package analysis

import (
	"bytes"
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/raine/skinalyzer-bot/internal/intake"
	"github.com/raine/skinalyzer-bot/internal/remote"
)

const (
	analyzePath = "/analyze"
	imageField  = "image"
)

// Client calls POST /analyze. It keeps no state between calls.
type Client struct {
	httpClient *resty.Client
}

// NewClient creates an analysis client for the service at opts.BaseURL.
func NewClient(opts remote.Options) *Client {
	return &Client{httpClient: remote.NewClient(opts)}
}

// Analyze uploads img and decodes the structured result. It makes exactly one
// request and never retries.
func (c *Client) Analyze(ctx context.Context, img *intake.StagedImage) (*Result, error) {
	if img == nil {
		return nil, ErrNoImage
	}

	start := time.Now()
	res, err := remote.HandleError(c.httpClient.R().
		SetContext(ctx).
		SetMultipartField(imageField, img.FileName, img.MimeType, bytes.NewReader(img.Data)).
		Post(analyzePath))
	if err != nil {
		log.Error().Err(err).Str("imageId", img.ID).Msg("analysis request failed")
		return nil, requestFailed(err.Error(), err)
	}

	result, err := decodeResult(res.Body())
	if err != nil {
		log.Error().Err(err).Str("imageId", img.ID).Str("body", truncate(res.String(), 200)).Msg("could not decode analysis response")
		return nil, requestFailed(err.Error(), err)
	}

	log.Info().
		Str("imageId", img.ID).
		Str("label", result.Label).
		Float64("confidence", result.ConfidencePercent).
		Dur("took", time.Since(start)).
		Msg("image analyzed")
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
