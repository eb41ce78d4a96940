// chat is a terminal client for the Chat function.
//
//	chat -server http://localhost:8082 -apikey *** -email a@b.c -password ***
//	chat -server http://localhost:8082 -token $(go run ./cmd/gentoken -uid alice -dev ***) -receiver bob
//
// Every line read from stdin is sent to the room, every change of the room
// is printed.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klipach/chatroom/auth"
	"github.com/klipach/chatroom/contract"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	serverPtr := flag.String("server", "http://localhost:8082", "Base URL of the chat server")
	tokenPtr := flag.String("token", "", "ID token, skips sign in")
	apiKeyPtr := flag.String("apikey", "", "Firebase web API key")
	emailPtr := flag.String("email", "", "Account email")
	passwordPtr := flag.String("password", "", "Account password")
	registerPtr := flag.Bool("register", false, "Create the account before signing in")
	receiverPtr := flag.String("receiver", "", "Open a private chat with this user instead of the public room")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token := *tokenPtr
	if token == "" {
		creds := auth.Credentials{Email: *emailPtr, Password: *passwordPtr}
		client := auth.NewIdentityClient(*apiKeyPtr)
		signIn := client.SignIn
		if *registerPtr {
			signIn = client.SignUp
		}
		resp, err := signIn(ctx, creds)
		if err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
		token = resp.IDToken
		fmt.Printf("signed in as %s\n", resp.User().Label())
	}

	endpoint, err := socketURL(*serverPtr, *receiverPtr)
	if err != nil {
		return err
	}
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", endpoint, err)
	}
	defer conn.Close()

	errs := make(chan error, 2)
	go func() { errs <- printFrames(conn) }()
	go func() { errs <- sendLines(conn, os.Stdin) }()

	select {
	case <-ctx.Done():
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return nil
	case err := <-errs:
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
			return nil
		}
		return err
	}
}

func socketURL(server, receiver string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if receiver == "" {
		u.Path = strings.TrimRight(u.Path, "/") + "/public/ws"
	} else {
		u.Path = strings.TrimRight(u.Path, "/") + "/private/" + url.PathEscape(receiver) + "/ws"
	}
	return u.String(), nil
}

// printFrames redraws the whole room on every frame.
func printFrames(conn *websocket.Conn) error {
	for {
		var f contract.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return err
		}
		fmt.Print("\033[H\033[2J")
		fmt.Printf("== %s ==\n", f.Room)
		for _, m := range f.Messages {
			fmt.Println(formatMessage(m))
		}
		if f.Error != "" {
			return fmt.Errorf("room failed: %s", f.Error)
		}
	}
}

func formatMessage(m contract.MessageView) string {
	at := time.UnixMilli(m.Timestamp).Format("15:04")
	who := m.SenderLabel
	if who == "" {
		who = m.SenderID
	}
	if m.Mine {
		who = "me"
	}
	return fmt.Sprintf("[%s] %s: %s", at, who, m.Text)
}

func sendLines(conn *websocket.Conn, in *os.File) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := conn.WriteJSON(contract.SendRequest{Text: scanner.Text()}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
