package media

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/princekumarofficial/chat-media-service/internal/media"
	"github.com/princekumarofficial/chat-media-service/internal/probe"
	"github.com/princekumarofficial/chat-media-service/internal/relay"
	"github.com/princekumarofficial/chat-media-service/internal/utils/response"
)

// maxProbeTimeout caps the timeout a caller may ask for.
const maxProbeTimeout = 30 * time.Second

type MediaHandlers struct {
	inspector    *media.Inspector
	router       *relay.Router
	prober       *probe.Prober
	validate     *validator.Validate
	probeHosts   []string
	probeTimeout time.Duration
	now          func() time.Time
}

type ResolveRequest struct {
	Attachments []media.Attachment `json:"attachments" validate:"required,min=1,max=100,dive"`
}

type ResolvedMedia struct {
	Descriptor string          `json:"descriptor"`
	Kind       media.Kind      `json:"kind"`
	Hinted     bool            `json:"hinted"`
	Transport  media.Transport `json:"transport"`
	Normalized string          `json:"normalized,omitempty"`
	ObjectName string          `json:"object_name,omitempty"`
	// RelayURL is the fallback URL; empty when the transport has no relay.
	RelayURL string `json:"relay_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewMediaHandlers creates the media API handlers. probeHosts limits which
// hosts the server will probe on a client's behalf.
func NewMediaHandlers(inspector *media.Inspector, router *relay.Router, prober *probe.Prober, probeHosts []string, probeTimeout time.Duration) *MediaHandlers {
	if probeTimeout <= 0 {
		probeTimeout = probe.DefaultTimeout
	}
	return &MediaHandlers{
		inspector:    inspector,
		router:       router,
		prober:       prober,
		validate:     validator.New(),
		probeHosts:   probeHosts,
		probeTimeout: probeTimeout,
		now:          time.Now,
	}
}

// Resolve classifies and resolves a batch of attachments
// @Summary Resolve attachments
// @Description Classify attachments and resolve each to its transport, normalized URL and relay URL
// @Tags media
// @Accept json
// @Produce json
// @Param request body ResolveRequest true "Attachments"
// @Success 200 {array} ResolvedMedia "Attachments resolved"
// @Failure 400 {object} response.Response "Bad request"
// @Failure 401 {object} response.Response "Unauthorized"
// @Security BearerAuth
// @Router /api/media/resolve [post]
func (h *MediaHandlers) Resolve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResolveRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20)).Decode(&req); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("invalid request body")))
			return
		}
		if err := h.validate.Struct(req); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(verrs))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		at := h.now()
		out := make([]ResolvedMedia, 0, len(req.Attachments))
		for _, att := range req.Attachments {
			out = append(out, h.resolveOne(att, at))
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Attachments resolved", out))
	}
}

func (h *MediaHandlers) resolveOne(att media.Attachment, at time.Time) ResolvedMedia {
	m := h.inspector.Inspect(att)
	item := ResolvedMedia{
		Descriptor: att.Descriptor,
		Kind:       m.Kind,
		Hinted:     m.Hinted,
		Transport:  m.Resolution.Transport,
		Normalized: m.Resolution.Normalized,
		ObjectName: m.Resolution.ObjectName,
	}
	if m.Resolution.Err != nil {
		item.Error = m.Resolution.Err.Error()
		return item
	}
	if relayURL, ok := h.router.RouteFor(m.Resolution, att.Instance, at); ok {
		item.RelayURL = relayURL
	}
	return item
}

// Probe checks whether an audio URL is likely playable
// @Summary Probe audio playability
// @Description Fetch the first bytes of an audio URL and report whether it looks playable within the timeout
// @Tags media
// @Produce json
// @Param url query string true "Audio URL"
// @Param timeout_ms query int false "Timeout in milliseconds"
// @Success 200 {object} probe.Playback "Probe finished"
// @Failure 400 {object} response.Response "Bad request"
// @Failure 403 {object} response.Response "Host not allowed"
// @Security BearerAuth
// @Router /api/media/probe [get]
func (h *MediaHandlers) Probe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("url")
		if err := h.validate.Var(raw, "required,url"); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("url must be an absolute URL")))
			return
		}
		target, err := url.Parse(raw)
		if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("url must be http(s)")))
			return
		}
		if !media.HostAllowed(h.probeHosts, target) {
			response.WriteJSON(w, http.StatusForbidden, response.GeneralError(errors.New("host is not probeable")))
			return
		}

		timeout := h.probeTimeout
		if ms := r.URL.Query().Get("timeout_ms"); ms != "" {
			parsed, err := strconv.Atoi(ms)
			if err != nil || parsed <= 0 {
				response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("timeout_ms must be a positive integer")))
				return
			}
			timeout = min(time.Duration(parsed)*time.Millisecond, maxProbeTimeout)
		}

		plan := h.prober.PlanPlayback(r.Context(), target.String(), timeout)
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Probe finished", plan))
	}
}
