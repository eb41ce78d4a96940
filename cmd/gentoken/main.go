package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/klipach/chatroom/auth"
	"github.com/klipach/chatroom/session"
	"google.golang.org/api/option"
)

func main() {
	ctx := context.Background()
	uidPtr := flag.String("uid", "", "User UID for token generation")
	emailPtr := flag.String("email", "", "Email claim, dev tokens only")
	apiKeyPtr := flag.String("apikey", "", "Firebase API key for Identity Toolkit REST API")
	keyPtr := flag.String("key", "./service_account_key.json", "Service account key file")
	devSecretPtr := flag.String("dev", "", "Sign a dev token with this secret instead of asking Firebase")
	ttlPtr := flag.Duration("ttl", 24*time.Hour, "Lifetime of dev tokens")
	flag.Parse()

	if *uidPtr == "" {
		log.Fatalf("Please provide a user UID using the -uid flag")
	}

	if *devSecretPtr != "" {
		token, err := auth.IssueDevToken(*devSecretPtr, session.User{ID: *uidPtr, Email: *emailPtr}, *ttlPtr)
		if err != nil {
			log.Fatalf("error signing dev token: %v", err)
		}
		fmt.Println(token)
		return
	}

	absPath, err := filepath.Abs(*keyPtr)
	if err != nil {
		log.Fatalf("failed to get absolute path: %v", err)
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(absPath))
	if err != nil {
		log.Fatalf("error initializing app: %v", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		log.Fatalf("error getting Auth client: %v", err)
	}

	customToken, err := client.CustomToken(ctx, *uidPtr)
	if err != nil {
		log.Fatalf("error creating custom token: %v", err)
	}

	// exchange custom token for an ID token
	signInResp, err := auth.NewIdentityClient(*apiKeyPtr).SignInWithCustomToken(ctx, customToken)
	if err != nil {
		log.Fatalf("error exchanging custom token: %v", err)
	}

	fmt.Println(signInResp.IDToken)
}
