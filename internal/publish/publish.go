package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"dropcast/internal/media"
)

// MaxCaptionRunes is the hard ceiling for a caption regardless of provider.
const MaxCaptionRunes = 5000

// Poster sends a single item to the remote platform.
type Poster interface {
	Name() string
	Post(ctx context.Context, req Request) error
}

// Authenticator is implemented by posters that need a session before posting.
type Authenticator interface {
	Login(ctx context.Context) error
}

// Location is an optional geotag attached to a post.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

// Options enumerates the recognized per-post settings.
type Options struct {
	Caption  string    `json:"caption,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// NewOptions builds validated options.
func NewOptions(caption string, location *Location) (Options, error) {
	opts := Options{Caption: caption, Location: location}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate rejects captions that are not UTF-8 or too long and coordinates
// outside the globe.
func (o Options) Validate() error {
	if !utf8.ValidString(o.Caption) {
		return errors.New("caption is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(o.Caption); n > MaxCaptionRunes {
		return fmt.Errorf("caption has %d characters, limit is %d", n, MaxCaptionRunes)
	}
	if o.Location != nil {
		if o.Location.Latitude < -90 || o.Location.Latitude > 90 {
			return fmt.Errorf("latitude %v out of range", o.Location.Latitude)
		}
		if o.Location.Longitude < -180 || o.Location.Longitude > 180 {
			return fmt.Errorf("longitude %v out of range", o.Location.Longitude)
		}
	}
	return nil
}

// Request is one post attempt.
type Request struct {
	Path      string
	Kind      media.Kind
	Options   Options
	AttemptID string
}

// Validate checks the request before it reaches a provider.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Path) == "" {
		return errors.New("request path is empty")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("request kind %q is not postable", r.Kind)
	}
	return r.Options.Validate()
}
