package chatroom

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/klipach/chatroom/auth"
	"github.com/klipach/chatroom/chat"
	"github.com/klipach/chatroom/contract"
	"github.com/klipach/chatroom/log"
	"github.com/klipach/chatroom/room"
	"github.com/klipach/chatroom/session"
	"github.com/klipach/chatroom/store"
)

const (
	receiverIDParam = "receiverID"
	traceHeader     = "X-Cloud-Trace-Context"
	maxBodyBytes    = 64 << 10
)

// resolveFunc picks the room a request talks to.
type resolveFunc func(r *http.Request, s session.Session) (room.Address, error)

// handlerFunc is an authenticated handler. The session is handed over
// explicitly and never read back from the request context.
type handlerFunc func(w http.ResponseWriter, r *http.Request, s session.Session, addr room.Address)

type Option func(*Server)

// WithProjectID lets request logs join Cloud Trace.
func WithProjectID(projectID string) Option {
	return func(s *Server) { s.projectID = projectID }
}

type Server struct {
	store     store.Store
	verifier  auth.Verifier
	log       *slog.Logger
	projectID string
	router    chi.Router
	upgrader  websocket.Upgrader
	onClose   func() error
}

func NewServer(st store.Store, v auth.Verifier, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		store:    st,
		verifier: v,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// tokens travel in the header or query, never in cookies
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.withLogger)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Route("/public", func(r chi.Router) {
		r.Get("/messages", s.authenticated(publicRoom, s.handleStream))
		r.Post("/messages", s.authenticated(publicRoom, s.handleSend))
		r.Get("/ws", s.authenticated(publicRoom, s.handleSocket))
	})
	r.Route("/private/{"+receiverIDParam+"}", func(r chi.Router) {
		r.Get("/messages", s.authenticated(privateRoom, s.handleStream))
		r.Post("/messages", s.authenticated(privateRoom, s.handleSend))
		r.Get("/ws", s.authenticated(privateRoom, s.handleSocket))
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the store and flushes the logs.
func (s *Server) Close() error {
	err := s.store.Close()
	if s.onClose != nil {
		err = errors.Join(err, s.onClose())
	}
	return err
}

func publicRoom(*http.Request, session.Session) (room.Address, error) {
	return room.Public(), nil
}

func privateRoom(r *http.Request, s session.Session) (room.Address, error) {
	return room.Private(s, chi.URLParam(r, receiverIDParam))
}

func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if trace := s.traceID(r); trace != "" {
			ctx = log.WithTraceID(ctx, trace)
		}
		logger := s.log.With(slog.String(methodLogField, r.Method), slog.String(pathLogField, r.URL.Path))
		next.ServeHTTP(w, r.WithContext(log.WithLogger(ctx, logger)))
	})
}

// traceID converts "TRACE_ID/SPAN_ID;o=1" into the resource name Cloud Logging expects.
func (s *Server) traceID(r *http.Request) string {
	header := r.Header.Get(traceHeader)
	if header == "" || s.projectID == "" {
		return ""
	}
	trace, _, _ := strings.Cut(header, "/")
	return "projects/" + s.projectID + "/traces/" + trace
}

func (s *Server) authenticated(resolve resolveFunc, next handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := log.LoggerFromContext(ctx)

		sess, err := auth.Authenticate(r, s.verifier)
		if err != nil {
			logger.Error("error while authenticating", slog.String(ErrorMsgLogField, err.Error()))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		user, _ := sess.CurrentUser()
		logger = logger.With(slog.String(userIDLogField, user.ID))

		addr, err := resolve(r, sess)
		if err != nil {
			logger.Error("error while resolving room",
				slog.String(receiverIDLogField, chi.URLParam(r, receiverIDParam)),
				slog.String(ErrorMsgLogField, err.Error()),
			)
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		logger = logger.With(slog.String(roomLogField, addr.Path()))
		next(w, r.WithContext(log.WithLogger(ctx, logger)), sess, addr)
	}
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, sess session.Session, addr room.Address) {
	ctx := r.Context()
	logger := log.LoggerFromContext(ctx)

	var msg contract.SendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		logger.Error("error while decoding request", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	vm := chat.New(s.store, sess, chat.WithLogger(logger))
	if err := vm.Send(ctx, addr, msg.Text); err != nil {
		logger.Error("error while sending message", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	// the instance may be frozen once the response is written, so the append
	// has to be done by then. A failed append is still only logged.
	vm.Flush()
	w.WriteHeader(http.StatusAccepted)
}
