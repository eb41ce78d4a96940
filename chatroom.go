// Package chatroom serves the public room and private chats over HTTP.
// It is deployed as the "Chat" Cloud Function and can run locally through
// cmd/main.go.
package chatroom

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/klipach/chatroom/log"
)

const (
	ErrorMsgLogField   = "errorMsg"
	userIDLogField     = "userID"
	roomLogField       = "room"
	receiverIDLogField = "receiverID"
	methodLogField     = "method"
	pathLogField       = "path"
)

var (
	setupOnce sync.Once
	server    *Server
	setupErr  error
)

func init() {
	functions.HTTP("Chat", Chat)
}

// Chat is the Cloud Function entry point. Clients and store connections are
// created on the first call and shared by every later one.
func Chat(w http.ResponseWriter, r *http.Request) {
	setupOnce.Do(func() {
		server, setupErr = Setup(context.Background())
	})
	if setupErr != nil {
		logger := log.LoggerFromContext(r.Context())
		logger.Error("error while setting up chat", slog.String(ErrorMsgLogField, setupErr.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	server.ServeHTTP(w, r)
}
