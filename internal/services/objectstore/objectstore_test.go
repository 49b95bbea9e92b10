package objectstore

import (
	"errors"
	"testing"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		header string
		size   int64
		want   ByteRange
	}{
		{"bytes=0-99", 1000, ByteRange{0, 99}},
		{"bytes=500-", 1000, ByteRange{500, 999}},
		{"bytes=-100", 1000, ByteRange{900, 999}},
		{"bytes=-5000", 1000, ByteRange{0, 999}},
		{"bytes=900-5000", 1000, ByteRange{900, 999}},
	}

	for _, tt := range tests {
		got, err := ParseRange(tt.header, tt.size)
		if err != nil {
			t.Fatalf("ParseRange(%q): %v", tt.header, err)
		}
		if got != tt.want {
			t.Errorf("ParseRange(%q) = %+v, want %+v", tt.header, got, tt.want)
		}
	}
}

func TestParseRangeRejects(t *testing.T) {
	for _, header := range []string{"items=0-1", "bytes=5-1", "bytes=1000-", "bytes=0-1,4-5", "bytes=-0", "bytes=x-"} {
		if _, err := ParseRange(header, 1000); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("ParseRange(%q) error = %v, want ErrInvalidRange", header, err)
		}
	}
}

func TestContentRange(t *testing.T) {
	r := ByteRange{Start: 0, End: 99}
	if got := r.ContentRange(1000); got != "bytes 0-99/1000" {
		t.Fatalf("unexpected Content-Range %q", got)
	}
	if r.Length() != 100 {
		t.Fatalf("expected length 100, got %d", r.Length())
	}
}
