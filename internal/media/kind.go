package media

import (
	"errors"
	"strings"
)

// Kind is the rendering category of an attachment.
type Kind string

const (
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindSticker  Kind = "sticker"
	KindText     Kind = "text"
)

func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindImage, KindVideo, KindAudio, KindDocument, KindSticker, KindText:
		return true
	}
	return false
}

// ParseKind maps a loosely formatted kind label to a Kind.
// Unknown labels yield "" and false.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "image", "photo", "picture", "gif":
		return KindImage, true
	case "video":
		return KindVideo, true
	case "audio", "voice", "ptt":
		return KindAudio, true
	case "document", "file":
		return KindDocument, true
	case "sticker":
		return KindSticker, true
	case "text":
		return KindText, true
	}
	return "", false
}

var (
	// ErrClassificationIndeterminate is recorded when no rule matched and the
	// descriptor fell through to text. It is never returned to callers.
	ErrClassificationIndeterminate = errors.New("media kind could not be determined")
	// ErrTransportInvalid marks a descriptor that cannot be fetched at all.
	ErrTransportInvalid = errors.New("media reference is not retrievable")
)

var extensionKinds = map[string]Kind{
	"jpg": KindImage, "jpeg": KindImage, "png": KindImage, "gif": KindImage,
	"svg": KindImage, "bmp": KindImage, "tiff": KindImage,

	"mp4": KindVideo, "avi": KindVideo, "mov": KindVideo, "wmv": KindVideo,
	"flv": KindVideo, "webm": KindVideo, "mkv": KindVideo, "3gp": KindVideo,

	"mp3": KindAudio, "wav": KindAudio, "ogg": KindAudio, "aac": KindAudio,
	"m4a": KindAudio, "flac": KindAudio, "opus": KindAudio,

	"pdf": KindDocument, "doc": KindDocument, "docx": KindDocument,
	"xls": KindDocument, "xlsx": KindDocument, "ppt": KindDocument,
	"pptx": KindDocument, "txt": KindDocument, "rtf": KindDocument,
	"csv": KindDocument,
}

// KindForExtension looks up a file extension (with or without the leading
// dot) in the fixed extension table.
func KindForExtension(ext string) (Kind, bool) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	k, ok := extensionKinds[ext]
	return k, ok
}

// extensionOf returns the lowercased extension of the last path segment.
func extensionOf(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	i := strings.LastIndex(p, ".")
	if i < 0 || i == len(p)-1 {
		return ""
	}
	return strings.ToLower(p[i+1:])
}
