package media

import (
	"net/url"
	"strings"
)

// Transport is the delivery path a descriptor implies.
type Transport string

const (
	TransportInline          Transport = "inline"
	TransportPrimaryStore    Transport = "primary-object-store"
	TransportSecondaryStore  Transport = "secondary-object-store"
	TransportEncryptedSource Transport = "encrypted-relay-source"
	TransportGenericHTTP     Transport = "generic-http"
	TransportInvalid         Transport = "invalid"
)

func (t Transport) String() string {
	return string(t)
}

// Resolution is the outcome of resolving one descriptor. An empty Normalized
// means the media is not retrievable; Err is then ErrTransportInvalid.
type Resolution struct {
	Transport  Transport `json:"transport"`
	Original   string    `json:"original"`
	Normalized string    `json:"normalized,omitempty"`
	// ObjectName is the secondary store identifier, the only value its relay accepts.
	ObjectName string `json:"object_name,omitempty"`
	Err        error  `json:"-"`
}

// Valid reports whether the resolution produced a usable URL.
func (r Resolution) Valid() bool {
	return r.Normalized != ""
}

// primaryMediaMarker must be present on primary store URLs; without it the
// store answers with object metadata instead of bytes.
const (
	primaryMediaParam = "alt"
	primaryMediaValue = "media"
	encryptedSuffix   = ".enc"
)

// Resolver determines the transport of a descriptor and normalizes it.
type Resolver struct {
	d *detector
}

// NewResolver creates a resolver for the given origins. refs builds the
// relay references that stand in for secondary store URLs.
func NewResolver(hosts Hosts, refs References) *Resolver {
	return &Resolver{d: newDetector(hosts, refs)}
}

// Resolve maps a descriptor to exactly one transport and normalized URL.
func (r *Resolver) Resolve(descriptor string) Resolution {
	value := strings.TrimSpace(descriptor)
	res := Resolution{Original: value}

	o, u := r.d.detect(value)
	switch o {
	case originData:
		res.Transport = TransportInline
		res.Normalized = value
		return res

	case originPrimary:
		res.Transport = TransportPrimaryStore
		repaired := RepairDoubleEncoding(value)
		ru, err := url.Parse(repaired)
		if err != nil || ru.Query().Get(primaryMediaParam) != primaryMediaValue {
			res.Err = ErrTransportInvalid
			return res
		}
		res.Normalized = repaired
		return res

	case originSecondary:
		res.Transport = TransportSecondaryStore
		name := ""
		if r.d.refs != nil {
			name, _ = r.d.refs.ParseReference(value)
		}
		if name == "" && u != nil {
			name, _ = url.PathUnescape(lastSegment(u.EscapedPath()))
		}
		if name == "" || r.d.refs == nil {
			res.Err = ErrTransportInvalid
			return res
		}
		res.ObjectName = name
		res.Normalized = r.d.refs.Reference(name)
		return res

	case originEncrypted:
		if strings.HasSuffix(strings.ToLower(u.Path), encryptedSuffix) {
			res.Transport = TransportEncryptedSource
			res.Normalized = value
			return res
		}
		res.Transport = TransportGenericHTTP
		res.Normalized = value
		return res

	case originHTTP:
		res.Transport = TransportGenericHTTP
		res.Normalized = value
		return res
	}

	if isInlineToken(value) {
		res.Transport = TransportInline
		res.Normalized = InlineDataURL(value)
		return res
	}

	res.Transport = TransportInvalid
	res.Err = ErrTransportInvalid
	return res
}

// RepairDoubleEncoding collapses path separators that were percent-encoded
// twice ("%252F") back to "%2F". Only the path is touched, and the repair is
// repeated until nothing changes, so applying it again is a no-op.
func RepairDoubleEncoding(raw string) string {
	cut := len(raw)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		cut = i
	}
	path, rest := raw[:cut], raw[cut:]
	for {
		next := strings.ReplaceAll(path, "%252F", "%2F")
		next = strings.ReplaceAll(next, "%252f", "%2F")
		if next == path {
			break
		}
		path = next
	}
	return path + rest
}
