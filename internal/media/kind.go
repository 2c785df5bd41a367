package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

// Kind is the media category of a queued item.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// sniffBytes is enough header for every matcher filetype ships.
const sniffBytes = 8192

// UnknownMIME is reported for content filetype cannot identify.
const UnknownMIME = "application/octet-stream"

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindImage || k == KindVideo
}

// ParseKind converts a stored or user-supplied value into a Kind.
func ParseKind(value string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(value)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown media kind %q", value)
	}
	return k, nil
}

// Detection describes what content sniffing found in a file.
type Detection struct {
	MIME      string
	Extension string
	Kind      Kind
}

// Sniff identifies a file by its leading bytes, never by its name. Kind is
// empty when the content is neither an image nor a video.
func Sniff(path string) (Detection, error) {
	file, err := os.Open(path)
	if err != nil {
		return Detection{}, err
	}
	defer file.Close()

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Detection{}, fmt.Errorf("read header: %w", err)
	}

	match, err := filetype.Match(head[:n])
	if err != nil || match == types.Unknown {
		return Detection{MIME: UnknownMIME}, nil
	}
	det := Detection{MIME: match.MIME.Value, Extension: match.Extension}
	switch match.MIME.Type {
	case "image":
		det.Kind = KindImage
	case "video":
		det.Kind = KindVideo
	}
	return det, nil
}
