package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/princekumarofficial/chat-media-service/internal/media"
	mediarelay "github.com/princekumarofficial/chat-media-service/internal/relay"
	"github.com/princekumarofficial/chat-media-service/internal/services/objectstore"
	"github.com/princekumarofficial/chat-media-service/internal/utils/response"
)

var (
	relayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_relay_requests_total",
		Help: "Relay requests by endpoint and outcome.",
	}, []string{"endpoint", "status"})

	relayBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_relay_bytes_total",
		Help: "Bytes streamed through the relays.",
	}, []string{"endpoint"})
)

const (
	endpointMedia   = "media"
	endpointObject  = "object"
	endpointDecrypt = "decrypt"
)

// headersToProxy are the upstream response headers passed to the client.
var headersToProxy = []string{
	"Content-Type",
	"Content-Length",
	"Content-Disposition",
	"Content-Range",
	"Accept-Ranges",
	"ETag",
	"Last-Modified",
}

// ObjectSource opens objects of the secondary store.
type ObjectSource interface {
	Open(ctx context.Context, objectName, rangeHeader string) (*objectstore.Object, error)
}

type Handlers struct {
	client          *http.Client
	objects         ObjectSource
	allowedHosts    []string
	decryptUpstream string
	logger          *slog.Logger
}

type Options struct {
	Client *http.Client
	// Objects may be nil when the secondary store is disabled.
	Objects ObjectSource
	// AllowedHosts restricts the media relay; it must not be empty for the
	// relay to fetch anything.
	AllowedHosts    []string
	DecryptUpstream string
	Logger          *slog.Logger
}

func NewHandlers(opts Options) *Handlers {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		client:          client,
		objects:         opts.Objects,
		allowedHosts:    opts.AllowedHosts,
		decryptUpstream: opts.DecryptUpstream,
		logger:          logger.With(slog.String("component", "relay")),
	}
}

// MediaRelay fetches a remote media URL on the client's behalf.
// @Summary Relay remote media
// @Tags relay
// @Param url query string true "Media URL"
// @Param _t query int false "Cache-busting timestamp"
// @Success 200 {file} binary
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /media-relay [get]
func (h *Handlers) MediaRelay() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get(mediarelay.ParamURL)
		if raw == "" {
			h.fail(w, endpointMedia, http.StatusBadRequest, errors.New("url is required"))
			return
		}
		target, err := url.Parse(raw)
		if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
			h.fail(w, endpointMedia, http.StatusBadRequest, errors.New("url must be absolute http(s)"))
			return
		}
		if !media.HostAllowed(h.allowedHosts, target) {
			h.fail(w, endpointMedia, http.StatusForbidden, fmt.Errorf("host %s is not relayed", target.Hostname()))
			return
		}

		h.forward(w, r, endpointMedia, target.String())
	}
}

// ObjectRelay streams an object from the secondary store.
// @Summary Relay stored object
// @Tags relay
// @Param objectName query string true "Object name"
// @Success 200 {file} binary
// @Success 206 {file} binary
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /object-relay [get]
func (h *Handlers) ObjectRelay() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.objects == nil {
			h.fail(w, endpointObject, http.StatusServiceUnavailable, errors.New("object store is not configured"))
			return
		}
		name := r.URL.Query().Get(mediarelay.ParamObjectName)
		if err := validateObjectName(name); err != nil {
			h.fail(w, endpointObject, http.StatusBadRequest, err)
			return
		}

		obj, err := h.objects.Open(r.Context(), name, r.Header.Get("Range"))
		switch {
		case errors.Is(err, objectstore.ErrObjectNotFound):
			h.fail(w, endpointObject, http.StatusNotFound, errors.New("object not found"))
			return
		case errors.Is(err, objectstore.ErrInvalidRange):
			h.fail(w, endpointObject, http.StatusRequestedRangeNotSatisfiable, err)
			return
		case err != nil:
			h.logger.Error("object open failed", slog.String("object", name), slog.String("error", err.Error()))
			h.fail(w, endpointObject, http.StatusBadGateway, errors.New("object store unavailable"))
			return
		}
		defer obj.Body.Close()

		header := w.Header()
		header.Set("Content-Type", obj.ContentType)
		header.Set("Accept-Ranges", "bytes")
		header.Set("Cache-Control", "private, max-age=300")
		if obj.ETag != "" {
			header.Set("ETag", strconv.Quote(obj.ETag))
		}
		if !obj.LastModified.IsZero() {
			header.Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
		}

		status := http.StatusOK
		length := obj.Size
		if obj.Range != nil {
			status = http.StatusPartialContent
			length = obj.Range.Length()
			header.Set("Content-Range", obj.Range.ContentRange(obj.Size))
		}
		header.Set("Content-Length", strconv.FormatInt(length, 10))
		w.WriteHeader(status)

		h.stream(w, obj.Body, endpointObject, name)
	}
}

// DecryptRelay asks the messaging gateway to decrypt an encrypted attachment.
// @Summary Relay encrypted media through the decrypting gateway
// @Tags relay
// @Param url query string true "Encrypted media URL"
// @Param instance query string true "Messaging account"
// @Success 200 {file} binary
// @Failure 400 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /decrypt-relay [get]
func (h *Handlers) DecryptRelay() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		raw, instance := q.Get(mediarelay.ParamURL), q.Get(mediarelay.ParamInstance)
		if raw == "" || instance == "" {
			h.fail(w, endpointDecrypt, http.StatusBadRequest, errors.New("url and instance are required"))
			return
		}
		if h.decryptUpstream == "" {
			h.fail(w, endpointDecrypt, http.StatusServiceUnavailable, errors.New("decrypt upstream is not configured"))
			return
		}

		upstream, err := url.Parse(h.decryptUpstream)
		if err != nil {
			h.fail(w, endpointDecrypt, http.StatusServiceUnavailable, fmt.Errorf("bad decrypt upstream: %w", err))
			return
		}
		uq := upstream.Query()
		uq.Set(mediarelay.ParamURL, raw)
		uq.Set(mediarelay.ParamInstance, instance)
		upstream.RawQuery = uq.Encode()

		h.forward(w, r, endpointDecrypt, upstream.String())
	}
}

// forward GETs target and streams the response, passing Range through.
func (h *Handlers) forward(w http.ResponseWriter, r *http.Request, endpoint, target string) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		h.fail(w, endpoint, http.StatusBadRequest, err)
		return
	}
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("upstream fetch failed", slog.String("endpoint", endpoint), slog.String("error", err.Error()))
		h.fail(w, endpoint, http.StatusBadGateway, errors.New("upstream unavailable"))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		h.logger.Warn("upstream returned unexpected status",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
		)
		status := http.StatusBadGateway
		if resp.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
		h.fail(w, endpoint, status, fmt.Errorf("upstream returned %d", resp.StatusCode))
		return
	}

	copyHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)
	h.stream(w, resp.Body, endpoint, target)
}

func (h *Handlers) stream(w io.Writer, body io.Reader, endpoint, subject string) {
	written, err := io.Copy(w, body)
	relayBytesTotal.WithLabelValues(endpoint).Add(float64(written))
	if err != nil {
		// headers are already sent
		h.logger.Error("relay stream interrupted",
			slog.String("endpoint", endpoint),
			slog.String("subject", subject),
			slog.Int64("bytes_written", written),
			slog.String("error", err.Error()),
		)
		relayRequestsTotal.WithLabelValues(endpoint, "stream_error").Inc()
		return
	}
	relayRequestsTotal.WithLabelValues(endpoint, "success").Inc()
}

func (h *Handlers) fail(w http.ResponseWriter, endpoint string, status int, err error) {
	relayRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	response.WriteJSON(w, status, response.GeneralError(err))
}

func copyHeaders(w http.ResponseWriter, resp *http.Response) {
	for _, h := range headersToProxy {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
}

func validateObjectName(name string) error {
	switch {
	case name == "":
		return errors.New("objectName is required")
	case strings.Contains(name, "://"):
		return errors.New("objectName must be a bare object name")
	case strings.HasPrefix(name, "/"):
		return errors.New("objectName must be relative")
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return errors.New("objectName must not traverse")
		}
	}
	return nil
}
