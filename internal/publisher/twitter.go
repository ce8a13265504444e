package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/rs/zerolog"
)

// Publisher posts announcement text, with an optional image, to the
// social platform.
type Publisher interface {
	Publish(ctx context.Context, text, imagePath string) error
}

// Options hold Twitter credentials and endpoints.
type Options struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
	APIBase           string
	UploadBase        string
	Timeout           time.Duration
}

// TwitterPublisher posts via the v2 create-tweet endpoint, uploading
// media through the v1.1 upload endpoint first. Both calls are OAuth1
// signed.
type TwitterPublisher struct {
	client     *http.Client
	apiBase    string
	uploadBase string
	logger     zerolog.Logger
}

// NewTwitter constructs a Twitter publisher.
func NewTwitter(opts Options, logger zerolog.Logger) *TwitterPublisher {
	config := oauth1.NewConfig(opts.APIKey, opts.APISecret)
	token := oauth1.NewToken(opts.AccessToken, opts.AccessTokenSecret)
	client := config.Client(oauth1.NoContext, token)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.Timeout = timeout

	apiBase := strings.TrimRight(opts.APIBase, "/")
	if apiBase == "" {
		apiBase = "https://api.twitter.com"
	}
	uploadBase := strings.TrimRight(opts.UploadBase, "/")
	if uploadBase == "" {
		uploadBase = "https://upload.twitter.com"
	}

	return &TwitterPublisher{
		client:     client,
		apiBase:    apiBase,
		uploadBase: uploadBase,
		logger:     logger.With().Str("component", "twitter").Logger(),
	}
}

// Publish posts the text, attaching the image at imagePath when it
// exists. A failed media upload degrades to a text-only post; a failed
// tweet creation is returned to the caller, which leaves the sale
// unmarked so it is retried on the next cycle.
func (p *TwitterPublisher) Publish(ctx context.Context, text, imagePath string) error {
	var mediaID string
	if imagePath != "" {
		if _, err := os.Stat(imagePath); err == nil {
			id, err := p.uploadMedia(ctx, imagePath)
			if err != nil {
				p.logger.Warn().Err(err).Str("path", imagePath).Msg("media upload failed, posting without image")
			} else {
				mediaID = id
			}
		}
	}

	return p.createTweet(ctx, text, mediaID)
}

func (p *TwitterPublisher) uploadMedia(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	endpoint := p.uploadBase + "/1.1/media/upload.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("media upload returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("decode media upload response: %w", err)
	}
	if res.MediaIDString == "" {
		return "", fmt.Errorf("media upload response missing media id")
	}

	return res.MediaIDString, nil
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

func (p *TwitterPublisher) createTweet(ctx context.Context, text, mediaID string) error {
	payload := tweetRequest{Text: text}
	if mediaID != "" {
		payload.Media = &tweetMedia{MediaIDs: []string{mediaID}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal tweet payload: %w", err)
	}

	endpoint := p.apiBase + "/2/tweets"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create tweet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send tweet request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("create tweet returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var res struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &res); err == nil && res.Data.ID != "" {
		p.logger.Info().Str("tweet_id", res.Data.ID).Bool("with_media", mediaID != "").Msg("tweet posted")
	} else {
		p.logger.Info().Bool("with_media", mediaID != "").Msg("tweet posted")
	}
	return nil
}

var _ Publisher = (*TwitterPublisher)(nil)
