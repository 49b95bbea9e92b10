package media

import (
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// NormalizeMime lowercases a MIME type and drops its parameters.
func NormalizeMime(raw string) string {
	mime := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

// MimeFromDataURL extracts the media-type tag of a data URL, or "" when the
// value is not a data URL or carries no tag.
func MimeFromDataURL(raw string) string {
	value := strings.TrimSpace(raw)
	if !hasPrefixFold(value, "data:") {
		return ""
	}
	rest := value[len("data:"):]
	if idx := strings.IndexAny(rest, ";,"); idx >= 0 {
		return NormalizeMime(rest[:idx])
	}
	return ""
}

// sniffLen is the number of base64 characters decoded for content sniffing.
// It must be a multiple of 4.
const sniffLen = 4096

// InlineDataURL wraps a bare base64 token into a data URL. The MIME type is
// sniffed from the decoded prefix; anything that is not recognisably an
// image is labelled image/jpeg, the format such tokens carry in practice.
func InlineDataURL(token string) string {
	token = strings.TrimSpace(token)
	return "data:" + sniffImageMime(token) + ";base64," + token
}

func sniffImageMime(token string) string {
	const fallback = "image/jpeg"
	prefix := token
	if len(prefix) > sniffLen {
		prefix = prefix[:sniffLen]
	}
	enc := base64.StdEncoding
	if strings.ContainsAny(prefix, "-_") {
		enc = base64.URLEncoding
	}
	raw, err := enc.DecodeString(prefix)
	if err != nil {
		// the prefix may end mid-padding; decode what is whole
		raw, err = enc.DecodeString(prefix[:len(prefix)/4*4])
		if err != nil {
			return fallback
		}
	}
	mt := mimetype.Detect(raw)
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return NormalizeMime(m.String())
		}
	}
	return fallback
}
