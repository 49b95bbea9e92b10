// Package probe checks whether an audio URL is likely playable before the
// visible player is pointed at it. Results are advisory only.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/princekumarofficial/chat-media-service/internal/delivery"
)

// DefaultTimeout bounds a probe when the caller gives none.
const DefaultTimeout = 5 * time.Second

// DefaultMinBytes is how much audio must arrive before the URL counts as
// buffered enough to play through.
const DefaultMinBytes = 32 * 1024

// ErrProbeTimeout is reported when the probe did not finish in time.
var ErrProbeTimeout = errors.New("playability probe timed out")

var probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "media_probe_total",
	Help: "Playability probes by result.",
}, []string{"result"})

// Prober runs bounded playability checks.
type Prober struct {
	client   *http.Client
	minBytes int64
	logger   *slog.Logger
}

// New creates a prober. A nil client uses http.DefaultClient.
func New(client *http.Client, minBytes int64, logger *slog.Logger) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if minBytes <= 0 {
		minBytes = DefaultMinBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		client:   client,
		minBytes: minBytes,
		logger:   logger.With(slog.String("component", "prober")),
	}
}

// Result is the detailed outcome of a probe.
type Result struct {
	Playable bool   `json:"playable"`
	Mime     string `json:"mime,omitempty"`
	Bytes    int64  `json:"bytes"`
	Err      error  `json:"-"`
}

// Probe reports whether url looks playable. It returns false on any error,
// on non-audio content and on timeout, whichever comes first.
func (p *Prober) Probe(ctx context.Context, url string, timeout time.Duration) bool {
	return p.Check(ctx, url, timeout).Playable
}

// Check is Probe with details. It always returns within timeout: the fetch
// runs in its own goroutine and is abandoned when the timer fires.
func (p *Prober) Check(ctx context.Context, url string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- p.fetch(ctx, url)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res Result
	select {
	case res = <-done:
	case <-timer.C:
		res = Result{Err: ErrProbeTimeout}
	case <-ctx.Done():
		res = Result{Err: ctx.Err()}
	}

	switch {
	case res.Playable:
		probesTotal.WithLabelValues("playable").Inc()
	case errors.Is(res.Err, ErrProbeTimeout):
		probesTotal.WithLabelValues("timeout").Inc()
	default:
		probesTotal.WithLabelValues("unplayable").Inc()
	}
	if res.Err != nil {
		p.logger.Debug("probe failed",
			slog.String("url", url),
			slog.String("cause", string(delivery.ClassifyError(res.Err).Cause)),
			slog.String("error", res.Err.Error()),
		)
	}
	return res
}

func (p *Prober) fetch(ctx context.Context, url string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Err: fmt.Errorf("build probe request: %w", err)}
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", p.minBytes-1))

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return Result{Err: &delivery.StatusError{StatusCode: resp.StatusCode}}
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, p.minBytes))
	if err != nil {
		return Result{Bytes: int64(len(buf)), Err: err}
	}
	n := int64(len(buf))
	if n == 0 {
		return Result{}
	}

	mime := mimetype.Detect(buf)
	res := Result{Mime: mime.String(), Bytes: n}
	if !isAudioContainer(mime) {
		return res
	}
	// Either minBytes arrived or the body ended cleanly, i.e. the whole
	// file is buffered.
	res.Playable = true
	return res
}

func isAudioContainer(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		s := m.String()
		if strings.HasPrefix(s, "audio/") || strings.HasPrefix(s, "video/") || strings.HasPrefix(s, "application/ogg") {
			return true
		}
	}
	return false
}

// Playback is the plan for starting an audio element.
type Playback struct {
	URL      string `json:"url"`
	Probed   bool   `json:"probed"`
	Playable bool   `json:"playable"`
	// Direct is always true: an unplayable verdict still gets one direct
	// playback attempt, since some valid encodings fail the probe.
	Direct bool `json:"direct"`
}

// PlanPlayback probes url and returns the plan. The probe verdict never
// changes which URL is played.
func (p *Prober) PlanPlayback(ctx context.Context, url string, timeout time.Duration) Playback {
	res := p.Check(ctx, url, timeout)
	return Playback{
		URL:      url,
		Probed:   res.Err == nil,
		Playable: res.Playable,
		Direct:   true,
	}
}
