package media

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	r := NewResolver(testHosts(), fakeRefs{})

	tests := []struct {
		name       string
		descriptor string
		transport  Transport
		normalized string
		objectName string
	}{
		{
			name:       "inline data url",
			descriptor: "data:image/webp;base64,AAAA",
			transport:  TransportInline,
			normalized: "data:image/webp;base64,AAAA",
		},
		{
			name:       "primary store repaired",
			descriptor: "https://firebasestorage.googleapis.com/v0/b/app/o/chats%252F1%252Fa.jpg?alt=media&token=t%252F",
			transport:  TransportPrimaryStore,
			normalized: "https://firebasestorage.googleapis.com/v0/b/app/o/chats%2F1%2Fa.jpg?alt=media&token=t%252F",
		},
		{
			name:       "secondary store",
			descriptor: "https://store.example/bucket/abc123.ogg",
			transport:  TransportSecondaryStore,
			normalized: "/object-relay?objectName=abc123.ogg",
			objectName: "abc123.ogg",
		},
		{
			name:       "secondary reference kept",
			descriptor: "/object-relay?objectName=abc123.ogg",
			transport:  TransportSecondaryStore,
			normalized: "/object-relay?objectName=abc123.ogg",
			objectName: "abc123.ogg",
		},
		{
			name:       "encrypted source",
			descriptor: "https://mmg.whatsapp.net/v/t62/abc.enc?oh=1",
			transport:  TransportEncryptedSource,
			normalized: "https://mmg.whatsapp.net/v/t62/abc.enc?oh=1",
		},
		{
			name:       "messaging host without encryption suffix",
			descriptor: "https://pps.whatsapp.net/v/t61/profile.jpg",
			transport:  TransportGenericHTTP,
			normalized: "https://pps.whatsapp.net/v/t61/profile.jpg",
		},
		{
			name:       "generic http",
			descriptor: "  https://example.com/file.xyz ",
			transport:  TransportGenericHTTP,
			normalized: "https://example.com/file.xyz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(tt.descriptor)
			if res.Transport != tt.transport {
				t.Fatalf("transport = %s, want %s", res.Transport, tt.transport)
			}
			if res.Normalized != tt.normalized {
				t.Fatalf("normalized = %q, want %q", res.Normalized, tt.normalized)
			}
			if res.ObjectName != tt.objectName {
				t.Fatalf("object name = %q, want %q", res.ObjectName, tt.objectName)
			}
			if res.Err != nil || !res.Valid() {
				t.Fatalf("expected a valid resolution, got %+v", res)
			}
		})
	}
}

func TestResolveInvalid(t *testing.T) {
	r := NewResolver(testHosts(), fakeRefs{})

	tests := []struct {
		descriptor string
		transport  Transport
	}{
		// doubly escaped and missing the media marker
		{"https://firebasestorage.googleapis.com/v0/b/app/o/chats%252Fa.jpg?token=abc", TransportPrimaryStore},
		{"https://firebasestorage.googleapis.com/v0/b/app/o/chats%2Fa.jpg?alt=json", TransportPrimaryStore},
		{"[Imagem]", TransportInvalid},
		{"hello", TransportInvalid},
		{"", TransportInvalid},
		{"ftp://example.com/a.png", TransportInvalid},
	}

	for _, tt := range tests {
		res := r.Resolve(tt.descriptor)
		if res.Transport != tt.transport {
			t.Errorf("Resolve(%q).Transport = %s, want %s", tt.descriptor, res.Transport, tt.transport)
		}
		if res.Valid() || !errors.Is(res.Err, ErrTransportInvalid) {
			t.Errorf("Resolve(%q) = %+v, want invalid", tt.descriptor, res)
		}
	}
}

func TestResolveInlineToken(t *testing.T) {
	r := NewResolver(testHosts(), fakeRefs{})

	token := base64.StdEncoding.EncodeToString(append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 120)...))
	res := r.Resolve(token)
	if res.Transport != TransportInline {
		t.Fatalf("expected inline transport, got %s", res.Transport)
	}
	if !strings.HasPrefix(res.Normalized, "data:image/png;base64,") {
		t.Fatalf("expected png data url, got %q", res.Normalized[:40])
	}

	opaque := strings.Repeat("QUJD", 40)
	res = r.Resolve(opaque)
	if !strings.HasPrefix(res.Normalized, "data:image/jpeg;base64,") {
		t.Fatalf("expected jpeg fallback, got %q", res.Normalized[:40])
	}
}

func TestRepairDoubleEncodingIdempotent(t *testing.T) {
	inputs := []string{
		"https://firebasestorage.googleapis.com/v0/b/app/o/a%252Fb%252Fc.jpg?alt=media",
		"https://firebasestorage.googleapis.com/v0/b/app/o/a%25252Fb.jpg?alt=media",
		"https://firebasestorage.googleapis.com/v0/b/app/o/a%2Fb.jpg?alt=media",
		"https://firebasestorage.googleapis.com/v0/b/app/o/a%252fb.jpg#frag%252F",
		"",
	}
	for _, in := range inputs {
		once := RepairDoubleEncoding(in)
		twice := RepairDoubleEncoding(once)
		if once != twice {
			t.Errorf("repair not idempotent for %q: %q then %q", in, once, twice)
		}
		path := once
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
		if strings.Contains(path, "%252F") {
			t.Errorf("repair left a doubly encoded separator in %q", once)
		}
	}

	if got := RepairDoubleEncoding("https://h/o/a%252Fb?x=%252F"); got != "https://h/o/a%2Fb?x=%252F" {
		t.Fatalf("query must not be touched, got %q", got)
	}
}

func TestResolutionDeterministic(t *testing.T) {
	r := NewResolver(testHosts(), fakeRefs{})
	d := "https://firebasestorage.googleapis.com/v0/b/app/o/chats%252Fa.jpg?alt=media"
	first := r.Resolve(d)
	if again := r.Resolve(d); again != first {
		t.Fatalf("resolution changed: %+v vs %+v", first, again)
	}
	if r.Resolve(first.Normalized).Normalized != first.Normalized {
		t.Fatal("resolving a normalized URL must be a no-op")
	}
}
