// README: Session handlers: lifecycle, sensor input, settings, Q&A, walking route and the snapshot stream.
package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"lookout/internal/ai"
	"lookout/internal/geo"
	"lookout/internal/http/middleware"
	"lookout/internal/maps"
	"lookout/internal/modules/aiusage"
	"lookout/internal/modules/session"
)

const (
	askTimeout   = 15 * time.Second
	routeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// EventSource streams published snapshots of one session.
type EventSource interface {
	Subscribe(ctx context.Context, id string) (<-chan session.Snapshot, error)
}

// Quota spends and reports enrichment tokens.
type Quota interface {
	aiusage.TokenSpender
	Remaining(ctx context.Context, uid string) (int, error)
}

// WalkingRouter estimates walking trips.
type WalkingRouter interface {
	WalkingEstimate(ctx context.Context, from, to geo.Coordinate) (maps.Estimate, error)
}

// SessionDeps wires the session handler. Only Sessions is required; the
// endpoints backed by a missing dependency answer 503.
type SessionDeps struct {
	Sessions *session.Registry
	Events   EventSource
	LLM      ai.LLMProvider
	Quota    Quota
	Routes   WalkingRouter
}

type SessionHandler struct {
	sessions *session.Registry
	events   EventSource
	llm      ai.LLMProvider
	quota    Quota
	routes   WalkingRouter
}

func NewSessionHandler(deps SessionDeps) *SessionHandler {
	return &SessionHandler{
		sessions: deps.Sessions,
		events:   deps.Events,
		llm:      deps.LLM,
		quota:    deps.Quota,
		routes:   deps.Routes,
	}
}

type createSessionResp struct {
	ID       string           `json:"id"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// Create handles POST /api/sessions. The body is optional.
func (h *SessionHandler) Create(c *gin.Context) {
	var set session.Settings
	if err := c.ShouldBindJSON(&set); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	s, err := h.sessions.Create(middleware.CallerUID(c), set)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, createSessionResp{ID: s.ID(), Snapshot: s.Snapshot()})
}

// Get handles GET /api/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, s.Snapshot())
}

// Delete handles DELETE /api/sessions/:id.
func (h *SessionHandler) Delete(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := h.sessions.Remove(s.ID()); err != nil {
		writeSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type permissionReq struct {
	Granted *bool `json:"granted"`
}

// Permission handles POST /api/sessions/:id/permission.
func (h *SessionHandler) Permission(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req permissionReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Granted == nil {
		writeError(c, http.StatusBadRequest, "missing granted")
		return
	}
	s.SetPermission(*req.Granted)
	writeJSON(c, http.StatusAccepted, map[string]any{"status": "accepted"})
}

type positionReq struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Position handles POST /api/sessions/:id/position.
func (h *SessionHandler) Position(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req positionReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Lat == nil || req.Lng == nil {
		writeError(c, http.StatusBadRequest, "missing lat or lng")
		return
	}
	lat, lng := *req.Lat, *req.Lng
	if !finite(lat) || !finite(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		writeError(c, http.StatusBadRequest, "coordinate out of range")
		return
	}
	s.PushPosition(geo.Coordinate{Lat: lat, Lng: lng})
	writeJSON(c, http.StatusAccepted, map[string]any{"status": "accepted"})
}

type headingReq struct {
	Heading *float64 `json:"heading"`
}

// Heading handles POST /api/sessions/:id/heading.
func (h *SessionHandler) Heading(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req headingReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Heading == nil || !finite(*req.Heading) {
		writeError(c, http.StatusBadRequest, "missing heading")
		return
	}
	s.PushHeading(*req.Heading)
	writeJSON(c, http.StatusAccepted, map[string]any{"status": "accepted"})
}

// Settings handles PUT /api/sessions/:id/settings.
func (h *SessionHandler) Settings(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var set session.Settings
	if err := c.ShouldBindJSON(&set); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.UpdateSettings(set); err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, map[string]any{"status": "accepted"})
}

type askReq struct {
	Question string `json:"question"`
}

type askResp struct {
	TargetID        string `json:"target_id"`
	Answer          string `json:"answer"`
	TokensRemaining *int   `json:"tokens_remaining,omitempty"`
}

// Ask handles POST /api/sessions/:id/ask: a question about the current target.
func (h *SessionHandler) Ask(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if h.llm == nil {
		writeError(c, http.StatusServiceUnavailable, "enrichment disabled")
		return
	}
	var req askReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(c, http.StatusBadRequest, "missing question")
		return
	}
	target := s.Snapshot().Result.Targeted
	if target == nil {
		writeError(c, http.StatusConflict, "nothing targeted")
		return
	}

	uid := middleware.CallerUID(c)
	provider := h.llm
	if h.quota != nil {
		provider = aiusage.Guard(h.quota, h.llm, uid)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), askTimeout)
	defer cancel()

	answer, err := provider.Answer(ctx, target.Title, target.Extract, req.Question)
	if err != nil {
		if errors.Is(err, aiusage.ErrInsufficientTokens) {
			writeSessionError(c, err)
			return
		}
		log.Printf("ask %s about %s: %v", s.ID(), target.ID, err)
		writeError(c, http.StatusBadGateway, "enrichment unavailable")
		return
	}

	resp := askResp{TargetID: target.ID, Answer: answer}
	if h.quota != nil {
		if n, err := h.quota.Remaining(ctx, uid); err == nil {
			resp.TokensRemaining = &n
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

// Route handles GET /api/sessions/:id/route: walking estimate to the target.
func (h *SessionHandler) Route(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if h.routes == nil {
		writeError(c, http.StatusServiceUnavailable, "routing disabled")
		return
	}
	snap := s.Snapshot()
	if snap.Position == nil || snap.Result.Targeted == nil {
		writeError(c, http.StatusConflict, "nothing targeted")
		return
	}
	target := snap.Result.Targeted

	ctx, cancel := context.WithTimeout(c.Request.Context(), routeTimeout)
	defer cancel()

	est, err := h.routes.WalkingEstimate(ctx, *snap.Position, target.Position)
	if err != nil {
		if errors.Is(err, maps.ErrNoRoute) {
			writeError(c, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("route %s to %s: %v", s.ID(), target.ID, err)
		writeError(c, http.StatusBadGateway, "routing unavailable")
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"target_id": target.ID, "estimate": est})
}

// Events handles GET /api/sessions/:id/events as a server-sent event stream.
// The current snapshot is sent first, then every published one.
func (h *SessionHandler) Events(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if h.events == nil {
		writeError(c, http.StatusServiceUnavailable, "streaming disabled")
		return
	}

	ctx := c.Request.Context()
	updates, err := h.events.Subscribe(ctx, s.ID())
	if err != nil {
		log.Printf("subscribe %s: %v", s.ID(), err)
		writeError(c, http.StatusBadGateway, "stream unavailable")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("snapshot", s.Snapshot())
	c.Writer.Flush()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Done():
			c.SSEvent("closed", map[string]string{"id": s.ID()})
			c.Writer.Flush()
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			c.SSEvent("snapshot", snap)
			c.Writer.Flush()
		case <-ping.C:
			_, _ = c.Writer.WriteString(": ping\n\n")
			c.Writer.Flush()
		}
	}
}

// lookup resolves :id to a session owned by the caller. Sessions of other
// callers are reported as missing.
func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing id")
		return nil, false
	}
	s, err := h.sessions.Get(id)
	if err == nil && s.Owner() != middleware.CallerUID(c) {
		err = session.ErrNotFound
	}
	if err != nil {
		writeSessionError(c, err)
		return nil, false
	}
	return s, true
}
