package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/andriputra/skysearch/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

type wsCommand struct {
	Action string `json:"action"`
}

type wsReply struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Watch bridges one search's progress room onto a websocket. Broadcast
// events stream as they happen; get_progress, cancel and list_active
// commands are answered directly on this connection only.
func (h *SearchHandler) Watch(c echo.Context) error {
	searchID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := h.pub.Subscribe(searchID)
	defer sub.Unsubscribe()

	// Writer owns the connection for outgoing frames; replies from the
	// command loop funnel through the same channel.
	replies := make(chan wsReply, 8)
	done := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		defer close(done)
		for {
			var cmd wsCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			h.handleCommand(c, searchID, cmd, replies, stop)
		}
	}()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				// Room closed: search reached a terminal state.
				deadline := time.Now().Add(wsWriteTimeout)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "search finished"), deadline)
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Debug("websocket write failed", zap.String("search_id", searchID), zap.Error(err))
				return nil
			}
		case reply := <-replies:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(reply); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}

func (h *SearchHandler) handleCommand(c echo.Context, searchID string, cmd wsCommand, replies chan<- wsReply, stop <-chan struct{}) {
	var reply wsReply
	switch cmd.Action {
	case "get_progress":
		snap, err := h.orch.GetProgress(searchID)
		if err != nil {
			reply = wsReply{Type: "progress", Error: models.ErrSearchNotFound.Error()}
		} else {
			reply = wsReply{Type: "progress", Payload: snap}
		}
	case "cancel":
		cancelled := h.orch.Cancel(c.Request().Context(), searchID, "cancelled via websocket")
		reply = wsReply{Type: "cancel", Payload: map[string]bool{"cancelled": cancelled}}
	case "list_active":
		reply = wsReply{Type: "active_searches", Payload: h.orch.ListActive()}
	default:
		reply = wsReply{Type: "error", Error: "unknown action: " + cmd.Action}
	}

	// Direct answers must reach the caller. Block until the writer drains
	// the channel; stop unblocks the send when the connection is torn down.
	select {
	case replies <- reply:
	case <-stop:
	}
}
