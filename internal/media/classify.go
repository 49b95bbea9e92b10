package media

import (
	"net/url"
	"strings"
	"unicode"
)

// Classifier derives the Kind of a descriptor. Classify is a pure function of
// its input and never panics; anything unrecognised is text.
type Classifier struct {
	d *detector
}

// NewClassifier creates a classifier for the given origins.
func NewClassifier(hosts Hosts, refs References) *Classifier {
	return &Classifier{d: newDetector(hosts, refs)}
}

// inlineTokenMinLen is the shortest bare token treated as an unlabeled
// inline image payload.
const inlineTokenMinLen = 100

// Classify applies the classification rules in precedence order.
func (c *Classifier) Classify(descriptor string) Kind {
	k, _ := c.ClassifyStrict(descriptor)
	return k
}

// ClassifyStrict is Classify that also reports ErrClassificationIndeterminate
// when the descriptor only fell through to text.
func (c *Classifier) ClassifyStrict(descriptor string) (Kind, error) {
	k := c.classify(strings.TrimSpace(descriptor))
	if k == "" {
		return KindText, ErrClassificationIndeterminate
	}
	return k, nil
}

// classify returns "" when no rule matched.
func (c *Classifier) classify(value string) Kind {
	o, u := c.d.detect(value)
	switch o {
	case originData:
		return kindFromDataURL(value)
	case originPrimary:
		return storeKind(primaryObjectPath(u))
	case originSecondary:
		if name, ok := c.secondaryObjectName(value, u); ok {
			return storeKind(name)
		}
		return KindImage
	case originEncrypted:
		ext := extensionOf(strings.TrimSuffix(strings.ToLower(u.Path), ".enc"))
		if k, ok := KindForExtension(ext); ok {
			return k
		}
		return KindImage
	case originHTTP:
		if k, ok := KindForExtension(extensionOf(u.Path)); ok {
			return k
		}
		return KindDocument
	}

	if k, ok := placeholderKind(value); ok {
		return k
	}
	if isInlineToken(value) {
		return KindImage
	}
	return ""
}

func (c *Classifier) secondaryObjectName(value string, u *url.URL) (string, bool) {
	if c.d.refs != nil {
		if name, ok := c.d.refs.ParseReference(value); ok {
			return name, true
		}
	}
	if u == nil {
		return "", false
	}
	name := lastSegment(u.Path)
	return name, name != ""
}

// kindFromDataURL maps the media-type tag of an inline payload. WebP images
// are stickers in this domain. An untagged payload is an image.
func kindFromDataURL(value string) Kind {
	mime := MimeFromDataURL(value)
	switch {
	case mime == "":
		return KindImage
	case mime == "image/webp":
		return KindSticker
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	}
	return KindDocument
}

// storeKind applies object-store path heuristics. A known extension decides
// first; otherwise path words are checked in the order video, sticker,
// audio, document. Object stores mostly hold images, hence the default.
func storeKind(objectPath string) Kind {
	p := strings.ToLower(objectPath)
	ext := extensionOf(p)
	if ext == "webp" {
		return KindSticker
	}
	if k, ok := KindForExtension(ext); ok {
		return k
	}
	switch {
	case strings.Contains(p, "video"):
		return KindVideo
	case strings.Contains(p, "sticker"), strings.Contains(p, "figurinha"):
		return KindSticker
	case strings.Contains(p, "audio"), strings.Contains(p, "voice"):
		return KindAudio
	case strings.Contains(p, "document"), strings.Contains(p, "/files/"):
		return KindDocument
	}
	return KindImage
}

// primaryObjectPath returns the decoded object path of a primary store URL,
// e.g. "chats/123/photo.jpg" for ".../o/chats%2F123%2Fphoto.jpg".
func primaryObjectPath(u *url.URL) string {
	escaped := RepairDoubleEncoding(u.EscapedPath())
	if i := strings.Index(escaped, "/o/"); i >= 0 {
		escaped = escaped[i+len("/o/"):]
	}
	if decoded, err := url.PathUnescape(escaped); err == nil {
		return decoded
	}
	return escaped
}

func lastSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	return p
}

type placeholder struct {
	marker string
	kind   Kind
}

// Placeholders appear when the message record only carries a caption for
// the media, in English or Portuguese.
var bracketLabels = map[string]Kind{
	"image": KindImage, "imagem": KindImage, "photo": KindImage, "foto": KindImage,
	"video": KindVideo, "vídeo": KindVideo,
	"audio": KindAudio, "áudio": KindAudio, "voice": KindAudio, "mensagem de voz": KindAudio,
	"sticker": KindSticker, "figurinha": KindSticker,
	"document": KindDocument, "documento": KindDocument, "file": KindDocument, "arquivo": KindDocument,
}

var emojiMarkers = []placeholder{
	{"📷", KindImage}, {"🖼", KindImage}, {"📸", KindImage},
	{"🎥", KindVideo}, {"📹", KindVideo}, {"🎬", KindVideo},
	{"🎵", KindAudio}, {"🎤", KindAudio}, {"🔊", KindAudio}, {"🎧", KindAudio},
	{"🏷", KindSticker}, {"💟", KindSticker},
	{"📄", KindDocument}, {"📎", KindDocument}, {"📁", KindDocument}, {"📑", KindDocument},
}

func placeholderKind(value string) (Kind, bool) {
	if strings.HasPrefix(value, "[") {
		if end := strings.Index(value, "]"); end > 1 {
			label := strings.ToLower(strings.TrimSpace(value[1:end]))
			if k, ok := bracketLabels[label]; ok {
				return k, true
			}
		}
	}
	for _, p := range emojiMarkers {
		if strings.HasPrefix(value, p.marker) {
			return p.kind, true
		}
	}
	return "", false
}

// isInlineToken reports whether value looks like a bare base64 payload.
func isInlineToken(value string) bool {
	if len(value) < inlineTokenMinLen || strings.Contains(value, "://") {
		return false
	}
	for _, r := range value {
		if unicode.IsSpace(r) {
			return false
		}
		if !isBase64Rune(r) {
			return false
		}
	}
	return true
}

func isBase64Rune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '+', r == '/', r == '=', r == '-', r == '_':
		return true
	}
	return false
}
