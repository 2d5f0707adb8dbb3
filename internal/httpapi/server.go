// Package httpapi is the engine's HTTP surface (C10): quest CRUD and
// instance/event management for trusted operators and quest creators, plus
// the trusted-producer event ingress, a liveness probe, and a bearer-token
// gated metrics endpoint. It follows this codebase's established pattern of
// an echo.Echo wrapped in a Server type with its dependencies as fields.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/lirancohen/questengine/internal/auth"
	"github.com/lirancohen/questengine/internal/eventqueue"
	"github.com/lirancohen/questengine/internal/questdef"
	"github.com/lirancohen/questengine/internal/questgraph"
	"github.com/lirancohen/questengine/internal/queststate"
	"github.com/lirancohen/questengine/internal/store"
	"github.com/lirancohen/questengine/internal/updatechannel"
	"github.com/lirancohen/questengine/internal/wire"
)

// Server is the HTTP surface over a Store and event Queue.
type Server struct {
	echo               *echo.Echo
	store              *store.Store
	queue              *eventqueue.Queue
	channel            updatechannel.Channel
	tokenConfig        *auth.TokenConfig
	metricsBearerToken string
	logger             *slog.Logger
}

// Config configures a new Server.
type Config struct {
	Store              *store.Store
	Queue              *eventqueue.Queue
	Channel            updatechannel.Channel
	TokenConfig        *auth.TokenConfig
	MetricsBearerToken string
	Logger             *slog.Logger
}

// NewServer builds the engine's HTTP surface and registers every route.
func NewServer(cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:               e,
		store:              cfg.Store,
		queue:              cfg.Queue,
		channel:            cfg.Channel,
		tokenConfig:        cfg.TokenConfig,
		metricsBearerToken: cfg.MetricsBearerToken,
		logger:             logger,
	}
	s.routes()
	return s
}

// Handler returns the http.Handler to mount (e.g. behind an http.Server).
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes() {
	s.echo.GET("/health/live", s.handleHealthLive)
	s.echo.GET("/metrics", s.handleMetrics)
	s.echo.PUT("/events", s.handlePutEvent)

	api := s.echo.Group("/api")
	api.GET("/quests", s.handleListQuests)
	api.GET("/quests/:id", s.handleGetQuest, s.optionalAuth)
	api.POST("/quests", s.handleCreateQuest, s.requireAuth)
	api.PUT("/quests/:id", s.handleUpdateQuest, s.requireAuth)
	api.DELETE("/quests/:id", s.handleDeactivateQuest, s.requireAuth)
	api.PUT("/quests/:id/activate", s.handleActivateQuest, s.requireAuth)
	api.GET("/quests/:id/stats", s.handleQuestStats, s.requireAuth)
	api.GET("/quests/:id/reward", s.handleQuestReward, s.optionalAuth)
	api.GET("/quests/:id/instances", s.handleQuestInstances, s.requireAuth)

	api.GET("/instances/:id", s.handleGetInstance, s.requireAuth)
	api.GET("/instances/:id/state", s.handleGetInstanceState, s.requireAuth)
	api.POST("/instances/:id/events", s.handlePostInstanceEvent, s.requireAuth)
	api.DELETE("/instances/:id/events/:event_id", s.handleDeleteInstanceEvent, s.requireAuth)
	api.PATCH("/instances/:id/reset", s.handleResetInstance, s.requireAuth)
}

// errorStatus maps a store error kind to its HTTP status, per the error
// propagation table: NotFound -> 404, authorization mismatches -> 403,
// state-machine violations -> 409, store failures -> 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrNotOwner), errors.Is(err, store.ErrNotQuestCreator):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotUuid):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrQuestAlreadyStarted),
		errors.Is(err, store.ErrQuestNotActivable),
		errors.Is(err, store.ErrQuestIsNotUpdatable),
		errors.Is(err, store.ErrQuestIsCurrentlyDeactivated):
		return http.StatusConflict
	case errors.Is(err, questdef.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondErr(c echo.Context, err error) error {
	return echo.NewHTTPError(errorStatus(err), err.Error())
}

func parsePage(c echo.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

func (s *Server) handleHealthLive(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(c echo.Context) error {
	if s.metricsBearerToken == "" || c.QueryParam("bearer_token") != s.metricsBearerToken {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid bearer_token"})
	}
	return c.String(http.StatusOK, "# questengine exports no metrics from this endpoint\n")
}

func (s *Server) handlePutEvent(c echo.Context) error {
	var event questdef.Event
	if err := c.Bind(&event); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed event"})
	}
	if _, err := s.queue.Push(c.Request().Context(), event); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleListQuests(c echo.Context) error {
	offset, limit := parsePage(c)
	quests, err := s.store.GetActiveQuests(offset, limit)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, quests)
}

// handleGetQuest returns a quest; its Definition is included only when the
// caller is its creator, per the collaborator-visible route contract.
func (s *Server) handleGetQuest(c echo.Context) error {
	q, err := s.store.GetQuest(c.Param("id"))
	if err != nil {
		return respondErr(c, err)
	}
	if principal(c) == nil || !strings.EqualFold(principal(c).Address, q.CreatorAddress) {
		q.Definition = questdef.Definition{}
	}
	return c.JSON(http.StatusOK, q)
}

func (s *Server) handleCreateQuest(c echo.Context) error {
	var q questdef.Quest
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed quest"})
	}
	id, err := s.store.CreateQuest(q, principal(c).Address)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdateQuest(c echo.Context) error {
	prevID := c.Param("id")
	if err := s.requireCreator(c, prevID); err != nil {
		return respondErr(c, err)
	}
	var q questdef.Quest
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed quest"})
	}
	newID, err := s.store.UpdateQuest(prevID, q, principal(c).Address)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"id": newID})
}

func (s *Server) handleDeactivateQuest(c echo.Context) error {
	id := c.Param("id")
	if err := s.requireCreator(c, id); err != nil {
		return respondErr(c, err)
	}
	if err := s.store.DeactivateQuest(id); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleActivateQuest(c echo.Context) error {
	id := c.Param("id")
	if err := s.requireCreator(c, id); err != nil {
		return respondErr(c, err)
	}
	if err := s.store.ActivateQuest(id); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleQuestStats(c echo.Context) error {
	id := c.Param("id")
	if err := s.requireCreator(c, id); err != nil {
		return respondErr(c, err)
	}
	stats, err := s.store.GetQuestStats(id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleQuestReward(c echo.Context) error {
	id := c.Param("id")
	items, err := s.store.GetQuestRewardItems(id)
	if err != nil {
		return respondErr(c, err)
	}
	resp := map[string]any{"items": items}
	if c.QueryParam("with_hook") == "true" {
		isCreator := false
		if p := principal(c); p != nil {
			if ok, err := s.store.IsQuestCreator(id, p.Address); err == nil {
				isCreator = ok
			}
		}
		if isCreator {
			hook, err := s.store.GetQuestRewardHook(id)
			if err == nil {
				resp["hook"] = hook
			} else if !errors.Is(err, store.ErrNotFound) {
				return respondErr(c, err)
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleQuestInstances(c echo.Context) error {
	id := c.Param("id")
	if err := s.requireCreator(c, id); err != nil {
		return respondErr(c, err)
	}
	offset, limit := parsePage(c)
	instances, err := s.store.GetActiveQuestInstancesByQuestID(id, offset, limit)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, instances)
}

func (s *Server) handleGetInstance(c echo.Context) error {
	inst, err := s.store.GetQuestInstance(c.Param("id"))
	if err != nil {
		return respondErr(c, err)
	}
	if err := s.requireCreator(c, inst.QuestID); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, inst)
}

func (s *Server) handleGetInstanceState(c echo.Context) error {
	inst, err := s.store.GetQuestInstance(c.Param("id"))
	if err != nil {
		return respondErr(c, err)
	}
	if err := s.requireCreator(c, inst.QuestID); err != nil {
		return respondErr(c, err)
	}

	q, err := s.store.GetQuest(inst.QuestID)
	if err != nil {
		return respondErr(c, err)
	}
	events, err := s.store.GetEvents(inst.ID)
	if err != nil {
		return respondErr(c, err)
	}
	actions := make([]questdef.Action, len(events))
	for i, e := range events {
		actions[i] = e.Action
	}
	state := queststate.GetState(questgraph.New(q.Definition), actions)
	return c.JSON(http.StatusOK, state)
}

func (s *Server) handlePostInstanceEvent(c echo.Context) error {
	inst, err := s.store.GetQuestInstance(c.Param("id"))
	if err != nil {
		return respondErr(c, err)
	}
	if err := s.requireCreator(c, inst.QuestID); err != nil {
		return respondErr(c, err)
	}

	var body struct {
		Action questdef.Action `json:"action"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed event"})
	}

	event := questdef.Event{ID: newEventID(), Address: inst.UserAddress, Action: body.Action}
	if _, err := s.queue.Push(c.Request().Context(), event); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"event_id": event.ID})
}

func (s *Server) handleDeleteInstanceEvent(c echo.Context) error {
	inst, err := s.store.GetQuestInstance(c.Param("id"))
	if err != nil {
		return respondErr(c, err)
	}
	if err := s.requireCreator(c, inst.QuestID); err != nil {
		return respondErr(c, err)
	}
	if err := s.store.RemoveEvent(c.Param("event_id")); err != nil {
		return respondErr(c, err)
	}
	if err := s.store.RemoveInstanceFromCompletedInstances(inst.ID); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleResetInstance clears an instance's events and completion mark, then
// publishes the resulting (initial) state so any live subscriber stays
// consistent with the store rather than showing stale progress.
func (s *Server) handleResetInstance(c echo.Context) error {
	inst, err := s.store.GetQuestInstance(c.Param("id"))
	if err != nil {
		return respondErr(c, err)
	}
	if err := s.requireCreator(c, inst.QuestID); err != nil {
		return respondErr(c, err)
	}
	if err := s.store.RemoveEventsForInstance(inst.ID); err != nil {
		return respondErr(c, err)
	}
	if err := s.store.RemoveInstanceFromCompletedInstances(inst.ID); err != nil {
		return respondErr(c, err)
	}

	if s.channel != nil {
		q, err := s.store.GetQuest(inst.QuestID)
		if err == nil {
			initial := queststate.GetState(questgraph.New(q.Definition), nil)
			if pubErr := s.channel.Publish(c.Request().Context(), inst.ID, wire.UserUpdate{
				Kind: wire.UserUpdateQuestStateUpdate,
				QuestStateUpdate: wire.QuestStateUpdate{
					InstanceID: inst.ID,
					QuestState: initial,
				},
			}); pubErr != nil {
				s.logger.Warn("reset instance: publish initial state failed", "instance_id", inst.ID, "error", pubErr)
			}
		}
	}

	return c.NoContent(http.StatusNoContent)
}

// requireCreator loads questID and confirms the authenticated principal is
// its creator, case-insensitively.
func (s *Server) requireCreator(c echo.Context, questID string) error {
	p := principal(c)
	if p == nil {
		return store.ErrNotQuestCreator
	}
	ok, err := s.store.IsQuestCreator(questID, p.Address)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotQuestCreator
	}
	return nil
}
