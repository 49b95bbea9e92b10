package media

import (
	"errors"
	"strings"
	"testing"
)

// fakeRefs recognises "/object-relay?objectName=" references.
type fakeRefs struct{}

func (fakeRefs) Reference(name string) string {
	return "/object-relay?objectName=" + name
}

func (fakeRefs) ParseReference(raw string) (string, bool) {
	const prefix = "/object-relay?objectName="
	if !strings.HasPrefix(raw, prefix) || len(raw) == len(prefix) {
		return "", false
	}
	return raw[len(prefix):], true
}

func testHosts() Hosts {
	h := DefaultHosts()
	h.SecondaryStore = []string{"store.example"}
	return h
}

func TestClassify(t *testing.T) {
	c := NewClassifier(testHosts(), fakeRefs{})
	longToken := strings.Repeat("QUJD", 40)

	tests := []struct {
		name       string
		descriptor string
		want       Kind
	}{
		{"webp data url is a sticker", "data:image/webp;base64,AAAA", KindSticker},
		{"png data url", "data:image/png;base64,AAAA", KindImage},
		{"video data url", "data:video/mp4;base64,AAAA", KindVideo},
		{"audio data url with params", "data:audio/ogg; codecs=opus;base64,AAAA", KindAudio},
		{"pdf data url", "data:application/pdf;base64,AAAA", KindDocument},
		{"untagged data url", "data:;base64,AAAA", KindImage},
		{"primary store image", "https://firebasestorage.googleapis.com/v0/b/app/o/chats%2F1%2Fphoto.jpg?alt=media", KindImage},
		{"primary store doubly encoded audio", "https://firebasestorage.googleapis.com/v0/b/app/o/chats%252Fvoice.ogg?alt=media", KindAudio},
		{"primary store webp", "https://firebasestorage.googleapis.com/v0/b/app/o/s%2Fx.webp?alt=media", KindSticker},
		{"primary store path hint", "https://firebasestorage.googleapis.com/v0/b/app/o/videos%2Fclip?alt=media", KindVideo},
		{"primary store figurinha hint", "https://firebasestorage.googleapis.com/v0/b/app/o/figurinhas%2F123?alt=media", KindSticker},
		{"primary store default", "https://firebasestorage.googleapis.com/v0/b/app/o/chats%2F123?alt=media", KindImage},
		{"secondary store audio", "https://store.example/bucket/abc123.ogg", KindAudio},
		{"secondary reference", "/object-relay?objectName=voice-note-1", KindAudio},
		{"encrypted with extension", "https://mmg.whatsapp.net/v/t62/clip.mp4.enc", KindVideo},
		{"encrypted without extension", "https://mmg.whatsapp.net/v/t62/abc.enc", KindImage},
		{"generic image", "https://cdn.example.com/a/b.PNG?x=1", KindImage},
		{"generic unknown extension", "https://example.com/file.xyz", KindDocument},
		{"generic pdf", "https://example.com/report.pdf", KindDocument},
		{"bracket placeholder", "[Imagem]", KindImage},
		{"bracket placeholder audio", "[ Áudio ]", KindAudio},
		{"emoji placeholder", "🎤 Voice message", KindAudio},
		{"bare token", longToken, KindImage},
		{"plain text", "hello there", KindText},
		{"empty", "", KindText},
		{"short token", "QUJD", KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.descriptor); got != tt.want {
				t.Fatalf("Classify(%q) = %s, want %s", tt.descriptor, got, tt.want)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewClassifier(testHosts(), fakeRefs{})
	inputs := []string{
		"data:image/webp;base64,AAAA",
		"https://store.example/bucket/abc123.ogg",
		"https://example.com/file.xyz",
		"[Sticker]",
		"random words",
		"%%%://",
	}
	for _, d := range inputs {
		first := c.Classify(d)
		for i := 0; i < 5; i++ {
			if got := c.Classify(d); got != first {
				t.Fatalf("Classify(%q) changed from %s to %s", d, first, got)
			}
		}
	}
}

func TestClassifyStrict(t *testing.T) {
	c := NewClassifier(testHosts(), fakeRefs{})

	k, err := c.ClassifyStrict("just a caption")
	if k != KindText || !errors.Is(err, ErrClassificationIndeterminate) {
		t.Fatalf("expected text with indeterminate error, got %s, %v", k, err)
	}

	k, err = c.ClassifyStrict("[Documento]")
	if k != KindDocument || err != nil {
		t.Fatalf("expected document without error, got %s, %v", k, err)
	}
}

func TestInspectHints(t *testing.T) {
	i := NewInspector(testHosts(), fakeRefs{})

	m := i.Inspect(Attachment{Descriptor: "https://example.com/download?id=1", FileName: "invoice.pdf"})
	if m.Kind != KindDocument || !m.Hinted {
		t.Fatalf("expected file name to refine kind, got %+v", m)
	}

	m = i.Inspect(Attachment{Descriptor: "https://example.com/download?id=1", FileName: "clip.mp4"})
	if m.Kind != KindVideo {
		t.Fatalf("expected video from file name, got %s", m.Kind)
	}

	m = i.Inspect(Attachment{Descriptor: "https://example.com/a.png", FileName: "clip.mp4"})
	if m.Kind != KindImage || m.Hinted {
		t.Fatalf("expected URL extension to win over file name, got %+v", m)
	}

	m = i.Inspect(Attachment{Descriptor: "https://example.com/a.png", Kind: KindSticker})
	if m.Kind != KindSticker || !m.Hinted {
		t.Fatalf("expected explicit kind to win, got %+v", m)
	}

	m = i.Inspect(Attachment{Descriptor: "[Imagem]", MediaURL: "https://store.example/bucket/v.ogg"})
	if m.Kind != KindAudio || m.Resolution.Transport != TransportSecondaryStore {
		t.Fatalf("expected media URL to be used as the source, got %+v", m)
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind(" PTT "); !ok || k != KindAudio {
		t.Fatalf("ParseKind(ptt) = %s, %v", k, ok)
	}
	if _, ok := ParseKind("hologram"); ok {
		t.Fatal("expected unknown label to be rejected")
	}
	if Kind("hologram").Valid() {
		t.Fatal("expected unknown kind to be invalid")
	}
}
