package media

import (
	"net/url"
	"strings"
)

// Attachment is what a message record hands to the rendering layer. Only
// Descriptor is required; the other fields are optional hints.
type Attachment struct {
	Descriptor string `json:"descriptor" validate:"required"`
	Kind       Kind   `json:"kind,omitempty" validate:"omitempty,oneof=image video audio document sticker text"`
	MediaURL   string `json:"media_url,omitempty"`
	FileName   string `json:"file_name,omitempty"`
	// Instance is the messaging account used to decrypt encrypted media.
	Instance string `json:"instance,omitempty"`
}

// Source returns the reference to deliver: the explicit media URL when set,
// the descriptor otherwise.
func (a Attachment) Source() string {
	if s := strings.TrimSpace(a.MediaURL); s != "" {
		return s
	}
	return a.Descriptor
}

// Media is a classified and resolved attachment.
type Media struct {
	Attachment
	Kind       Kind       `json:"kind"`
	Resolution Resolution `json:"resolution"`
	// Hinted is true when Kind came from the record rather than the descriptor.
	Hinted bool `json:"hinted"`
}

// Inspector runs classification and resolution for one attachment.
type Inspector struct {
	classifier *Classifier
	resolver   *Resolver
}

func NewInspector(hosts Hosts, refs References) *Inspector {
	return &Inspector{
		classifier: NewClassifier(hosts, refs),
		resolver:   NewResolver(hosts, refs),
	}
}

func (i *Inspector) Classifier() *Classifier { return i.classifier }

func (i *Inspector) Resolver() *Resolver { return i.resolver }

// Inspect classifies and resolves an attachment. An explicit kind on the
// record always wins. Otherwise a file name with a known extension refines
// URL descriptors whose own path carries no recognisable extension, since
// those kinds are only heuristic defaults.
func (i *Inspector) Inspect(att Attachment) Media {
	source := att.Source()
	m := Media{
		Attachment: att,
		Resolution: i.resolver.Resolve(source),
	}

	if att.Kind.Valid() {
		m.Kind = att.Kind
		m.Hinted = true
		return m
	}

	m.Kind = i.classifier.Classify(source)
	if k, ok := KindForExtension(extensionOf(att.FileName)); ok && !i.hasKnownExtension(source) {
		if o, _ := i.classifier.d.detect(source); o != originData && o != originNone {
			m.Kind = k
			m.Hinted = true
		}
	}
	return m
}

func (i *Inspector) hasKnownExtension(source string) bool {
	source = strings.TrimSpace(source)
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	p := strings.TrimSuffix(strings.ToLower(u.Path), encryptedSuffix)
	if refs := i.classifier.d.refs; refs != nil {
		if name, ok := refs.ParseReference(source); ok {
			p = name
		}
	}
	ext := extensionOf(p)
	if ext == "webp" {
		return true
	}
	_, ok := KindForExtension(ext)
	return ok
}
