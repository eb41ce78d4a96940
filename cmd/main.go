package main

import (
	"context"
	"log"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	_ "github.com/klipach/chatroom"
	"github.com/klipach/chatroom/config"
)

// STORE_BACKEND=badger AUTH_MODE=dev DEV_TOKEN_SECRET=*** go run cmd/main.go
func main() {
	log.Println("Started")

	cfg, err := config.Load(context.Background())
	if err != nil {
		log.Fatalf("config.Load: %v\n", err)
	}
	// funcframework reads the function to serve from FUNCTION_TARGET
	if os.Getenv("FUNCTION_TARGET") == "" {
		os.Setenv("FUNCTION_TARGET", "Chat")
	}

	if err := funcframework.Start(cfg.Port); err != nil {
		log.Fatalf("funcframework.Start: %v\n", err)
	}

	log.Println("Done")
}
