package chatroom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klipach/chatroom/chat"
	"github.com/klipach/chatroom/contract"
	"github.com/klipach/chatroom/log"
	"github.com/klipach/chatroom/render"
	"github.com/klipach/chatroom/room"
	"github.com/klipach/chatroom/session"
	"github.com/klipach/chatroom/store"
)

const (
	pingPeriod   = 54 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	maxFrameSize = 4096
)

// latest hands frames to a consumer through a channel of capacity one,
// replacing a frame that was not picked up yet. Frames are whole lists, so
// only the newest one matters.
func latest(frames chan chat.Frame) func(chat.Frame) {
	return func(f chat.Frame) {
		for {
			select {
			case frames <- f:
				return
			default:
			}
			select {
			case <-frames:
			default:
			}
		}
	}
}

// frameView renders a view model frame for user.
func frameView(f chat.Frame, userID string) contract.Frame {
	view := contract.Frame{
		Room:     f.Address.Path(),
		Messages: make([]contract.MessageView, 0, len(f.Messages)),
	}
	for _, m := range f.Messages {
		view.Messages = append(view.Messages, contract.MessageView{
			Message: m,
			HTML:    render.HTML(m.Text),
			Mine:    m.SenderID == userID,
		})
	}
	if f.Err != nil {
		view.Error = errorCode(f.Err)
	}
	return view
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, store.ErrClosed), errors.Is(err, chat.ErrSubscriptionClosed):
		return "unavailable"
	}
	return "internal"
}

// SetupStreamingFunction returns a writer of server-sent events.
func SetupStreamingFunction(w io.Writer, flusher http.Flusher) func(frame contract.Frame) error {
	return func(frame contract.Frame) error {
		jsonData, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		sseData := fmt.Sprintf("data: %s\n\n", jsonData)
		if _, err := w.Write([]byte(sseData)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
}

// follow subscribes a fresh view model for the lifetime of ctx.
func (s *Server) follow(ctx context.Context, sess session.Session, addr room.Address) (*chat.ViewModel, <-chan chat.Frame, error) {
	frames := make(chan chat.Frame, 1)
	vm := chat.New(s.store, sess,
		chat.WithLogger(log.LoggerFromContext(ctx)),
		chat.WithListener(latest(frames)),
	)
	if err := vm.Subscribe(ctx, addr); err != nil {
		return nil, nil, err
	}
	return vm, frames, nil
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, sess session.Session, addr room.Address) {
	ctx := r.Context()
	logger := log.LoggerFromContext(ctx)
	user, _ := sess.CurrentUser()

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("streaming unsupported!")
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	vm, frames, err := s.follow(ctx, sess, addr)
	if err != nil {
		logger.Error("error while subscribing", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	defer vm.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	write := SetupStreamingFunction(w, flusher)
	for {
		select {
		case f := <-frames:
			if err := write(frameView(f, user.ID)); err != nil {
				logger.Warn("error while writing event", slog.String(ErrorMsgLogField, err.Error()))
				return
			}
			if f.Err != nil {
				return
			}
		case <-ctx.Done():
			logger.Debug("stream closed by client")
			return
		}
	}
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request, sess session.Session, addr room.Address) {
	logger := log.LoggerFromContext(r.Context())
	user, _ := sess.CurrentUser()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("error while upgrading connection", slog.String(ErrorMsgLogField, err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	vm, frames, err := s.follow(ctx, sess, addr)
	if err != nil {
		logger.Error("error while subscribing", slog.String(ErrorMsgLogField, err.Error()))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "subscription refused"),
			time.Now().Add(writeWait))
		return
	}
	defer func() {
		vm.Close()
		vm.Flush()
	}()

	go s.readSocket(ctx, cancel, conn, vm, addr)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case f := <-frames:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frameView(f, user.ID)); err != nil {
				logger.Warn("error while writing frame", slog.String(ErrorMsgLogField, err.Error()))
				return
			}
			if f.Err != nil {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, errorCode(f.Err)),
					time.Now().Add(writeWait))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readSocket turns incoming {"text": ...} frames into sends until the peer goes away.
func (s *Server) readSocket(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, vm *chat.ViewModel, addr room.Address) {
	defer cancel()
	logger := log.LoggerFromContext(ctx)

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg contract.SendRequest
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket closed", slog.String(ErrorMsgLogField, err.Error()))
			}
			return
		}
		if err := vm.Send(ctx, addr, msg.Text); err != nil {
			logger.Error("error while sending message", slog.String(ErrorMsgLogField, err.Error()))
			return
		}
	}
}
