// Package mastodon posts queued media to a Mastodon server.
package mastodon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	mastodonapi "github.com/mattn/go-mastodon"

	"dropcast/internal/logging"
	"dropcast/internal/publish"
)

const (
	providerName   = "mastodon"
	requestTimeout = 60 * time.Second
)

// Config contains the settings needed to reach a Mastodon server.
type Config struct {
	Server       string
	AccessToken  string
	ClientID     string
	ClientSecret string
	Visibility   string
	HTTPClient   *http.Client
}

// Poster wraps the Mastodon API client.
type Poster struct {
	client     *mastodonapi.Client
	visibility string
	logger     *slog.Logger
}

var (
	_ publish.Poster        = (*Poster)(nil)
	_ publish.Authenticator = (*Poster)(nil)
)

// New constructs a poster for cfg.
func New(cfg Config, logger *slog.Logger) (*Poster, error) {
	var missing []string
	if strings.TrimSpace(cfg.Server) == "" {
		missing = append(missing, "server")
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		missing = append(missing, "access_token")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("mastodon: missing %s", strings.Join(missing, ", "))
	}

	client := mastodonapi.NewClient(&mastodonapi.Config{
		Server:       strings.TrimRight(cfg.Server, "/"),
		AccessToken:  cfg.AccessToken,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})
	if cfg.HTTPClient != nil {
		client.Client = *cfg.HTTPClient
	}
	if client.Timeout == 0 {
		client.Timeout = requestTimeout
	}
	return &Poster{
		client:     client,
		visibility: cfg.Visibility,
		logger:     logging.NewComponentLogger(logger, "mastodon"),
	}, nil
}

// Name identifies the provider.
func (p *Poster) Name() string { return providerName }

// Login verifies the access token against the server.
func (p *Poster) Login(ctx context.Context) error {
	account, err := p.client.GetAccountCurrentUser(ctx)
	if err != nil {
		return p.classify(err, "", false)
	}
	logging.Success(p.logger, "mastodon credentials verified",
		logging.String("account", account.Acct),
	)
	return nil
}

// Post uploads the media and publishes a status carrying the caption.
func (p *Poster) Post(ctx context.Context, req publish.Request) error {
	if err := req.Validate(); err != nil {
		return &publish.InvalidMediaError{Provider: providerName, Path: req.Path, Err: err}
	}

	file, err := os.Open(req.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &publish.InvalidMediaError{Provider: providerName, Path: req.Path, Err: err}
		}
		return fmt.Errorf("open media: %w", err)
	}
	defer file.Close()

	attachment, err := p.client.UploadMediaFromMedia(ctx, &mastodonapi.Media{
		File:        file,
		Description: filepath.Base(req.Path),
	})
	if err != nil {
		return p.classify(fmt.Errorf("upload media: %w", err), req.Path, true)
	}
	logging.DebugAt(p.logger, 3, "media uploaded",
		logging.String("media_id", string(attachment.ID)),
		logging.String(logging.FieldAttemptID, req.AttemptID),
	)

	status, err := p.client.PostStatus(ctx, &mastodonapi.Toot{
		Status:     statusText(req.Options),
		MediaIDs:   []mastodonapi.ID{attachment.ID},
		Visibility: p.visibility,
	})
	if err != nil {
		return p.classify(fmt.Errorf("post status: %w", err), req.Path, false)
	}
	p.logger.Info("status published",
		logging.String("status_id", string(status.ID)),
		logging.String("url", status.URL),
		logging.String(logging.FieldItemPath, req.Path),
	)
	return nil
}

// classify maps API status codes onto the publish failure taxonomy. A 422 is
// only final for the upload; on the status call it usually means the server
// is still processing the attachment.
func (p *Poster) classify(err error, path string, upload bool) error {
	var apiErr *mastodonapi.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &publish.AuthError{Provider: providerName, Err: err}
	case http.StatusTooManyRequests:
		return &publish.RateLimitError{Provider: providerName, Err: err}
	case http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		if upload {
			return &publish.InvalidMediaError{Provider: providerName, Path: path, Err: err}
		}
	}
	return err
}

// statusText appends the location to the caption. Mastodon statuses have no
// geotag field, so a location without a name is written as coordinates.
func statusText(opts publish.Options) string {
	text := strings.TrimSpace(opts.Caption)
	if opts.Location == nil {
		return text
	}
	place := strings.TrimSpace(opts.Location.Name)
	if place == "" {
		place = "📍 " + strconv.FormatFloat(opts.Location.Latitude, 'f', -1, 64) +
			", " + strconv.FormatFloat(opts.Location.Longitude, 'f', -1, 64)
	}
	if text != "" {
		text += "\n\n"
	}
	return text + place
}
