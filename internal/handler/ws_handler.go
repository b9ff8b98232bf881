package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/neuroboost/study-core/internal/activity"
	"github.com/neuroboost/study-core/internal/events"
	"github.com/neuroboost/study-core/internal/response"
	"github.com/neuroboost/study-core/internal/reward"
	"github.com/neuroboost/study-core/internal/session"
	ws "github.com/neuroboost/study-core/internal/websocket"
	"github.com/rs/zerolog"
)

const (
	outboxSize = 64
	// outboxWait bounds how long a non-countdown event waits for room in a full outbox.
	outboxWait = 2 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler bridges UI surfaces to the session and reward core. Every connection
// gets its own session controller; reward state is shared.
type WSHandler struct {
	grader        session.Grader
	rewards       *reward.Synchronizer
	activity      *activity.Service
	bus           *events.Bus
	submitTimeout time.Duration
	clock         session.Clock
	log           zerolog.Logger
	upgrader      websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	grader session.Grader,
	rewards *reward.Synchronizer,
	act *activity.Service,
	bus *events.Bus,
	submitTimeout time.Duration,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		grader:        grader,
		rewards:       rewards,
		activity:      act,
		bus:           bus,
		submitTimeout: submitTimeout,
		log:           log.With().Str("component", "ws_handler").Logger(),
		upgrader:      buildUpgrader(allowedOrigins),
	}
}

// SetClock overrides the countdown clock of controllers created afterwards.
func (h *WSHandler) SetClock(clock session.Clock) {
	h.clock = clock
}

// RewardState godoc
// GET /api/v1/reward
// Returns the cached reward state.
func (h *WSHandler) RewardState(c *gin.Context) {
	response.Success(c, http.StatusOK, h.rewards.State())
}

// StudyStream godoc
// WS /ws/v1/study
// Upgrades to a WebSocket carrying session actions and core events.
func (h *WSHandler) StudyStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("remote", c.ClientIP()).Logger()
	wsLog.Info().Msg("Surface connected")

	out := newOutbox(conn, wsLog)
	go out.run()
	defer out.close()

	unsubscribe := h.bus.Subscribe(func(e events.Event) { out.send(e) })
	defer unsubscribe()

	ctrl := session.NewController(h.grader, session.Options{
		Rewards:       h.rewards,
		Publisher:     events.PublisherFunc(func(e events.Event) { out.send(e) }),
		Clock:         h.clock,
		SubmitTimeout: h.submitTimeout,
	}, wsLog)
	defer func() {
		if err := ctrl.Reset(); err != nil {
			wsLog.Debug().Err(err).Str("state", string(ctrl.State())).Msg("Session still live on disconnect")
		}
		ctrl.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out.send(ws.DataResponse{Event: ws.EventReward, Data: h.rewards.State()})

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionStart:
			h.handleStart(ctx, out, ctrl, &msg)
		case ws.ActionAnswer:
			if err := ctrl.RecordAnswer(msg.QuestionID, msg.Option); err != nil {
				out.fail(msg.Action, err)
			}
		case ws.ActionSubmit:
			h.handleSubmit(ctx, out, ctrl)
		case ws.ActionReset:
			if err := ctrl.Reset(); err != nil {
				out.fail(msg.Action, err)
			}
		case ws.ActionToggleTask:
			h.handleToggleTask(ctx, out, &msg)
		case ws.ActionLogFocus:
			h.handleLogFocus(ctx, out, &msg)
		case ws.ActionPing:
			out.send(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			out.send(ws.ErrorResponse{Event: ws.EventError, Action: msg.Action, Error: "unknown action: " + string(msg.Action)})
		}
	}
}

func (h *WSHandler) handleStart(ctx context.Context, out *outbox, ctrl *session.Controller, msg *ws.RequestPayload) {
	sess, err := ctrl.Start(ctx, msg.Kind, msg.Params)
	if err != nil {
		out.fail(msg.Action, err)
		return
	}
	out.send(ws.DataResponse{Event: ws.EventSession, Data: sess})
}

func (h *WSHandler) handleSubmit(ctx context.Context, out *outbox, ctrl *session.Controller) {
	ctx, cancel := context.WithTimeout(ctx, h.submitTimeout)
	defer cancel()

	// Success is reported through the graded event.
	if _, err := ctrl.Submit(ctx, false); err != nil {
		out.fail(ws.ActionSubmit, err)
	}
}

func (h *WSHandler) handleToggleTask(ctx context.Context, out *outbox, msg *ws.RequestPayload) {
	resp, err := h.activity.ToggleTask(ctx, msg.Task, msg.Completed)
	if err != nil {
		out.fail(msg.Action, err)
		return
	}
	out.send(ws.DataResponse{Event: ws.EventTask, Data: resp})
}

func (h *WSHandler) handleLogFocus(ctx context.Context, out *outbox, msg *ws.RequestPayload) {
	resp, err := h.activity.LogFocusSession(ctx, msg.Minutes, msg.Notes)
	if err != nil {
		out.fail(msg.Action, err)
		return
	}
	out.send(ws.DataResponse{Event: ws.EventFocus, Data: resp})
}

// ─── Outbox ─────────────────────────────────────────────────────────

// outbox serializes writes: countdown ticks, reward events and replies all come
// from different goroutines, and a websocket connection allows one writer.
type outbox struct {
	conn *websocket.Conn
	ch   chan interface{}
	done chan struct{}
	once sync.Once
	log  zerolog.Logger
}

func newOutbox(conn *websocket.Conn, log zerolog.Logger) *outbox {
	return &outbox{
		conn: conn,
		ch:   make(chan interface{}, outboxSize),
		done: make(chan struct{}),
		log:  log,
	}
}

func (o *outbox) run() {
	for {
		select {
		case <-o.done:
			return
		case v := <-o.ch:
			if err := ws.WriteTyped(o.conn, v); err != nil {
				o.log.Debug().Err(err).Msg("Write failed")
			}
		}
	}
}

// send queues v. When the outbox is full, countdown ticks are dropped right
// away (the next tick supersedes them); anything else waits up to outboxWait.
func (o *outbox) send(v interface{}) {
	select {
	case <-o.done:
		return
	case o.ch <- v:
		return
	default:
	}

	if e, ok := v.(events.Event); ok && e.Type == events.TypeCountdown {
		o.log.Debug().Msg("Outbox full, dropping countdown tick")
		return
	}

	timer := time.NewTimer(outboxWait)
	defer timer.Stop()
	select {
	case <-o.done:
	case o.ch <- v:
	case <-timer.C:
		o.log.Warn().Msg("Outbox full, dropping message")
	}
}

func (o *outbox) fail(action ws.Action, err error) {
	o.send(ws.ErrorResponse{Event: ws.EventError, Action: action, Error: errorMessage(err)})
}

func (o *outbox) close() {
	o.once.Do(func() { close(o.done) })
}

func errorMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return err.Error()
}
