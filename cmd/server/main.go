// wchat-sfu is a room-scoped websocket-signaled SFU for the W-Chat service.
package main

import (
	"log"

	"github.com/joho/godotenv"

	"wchat-sfu/internal/app"
)

func main() {
	// Load .env file (if it exists)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	application, err := app.New()
	if err != nil {
		panic(err)
	}

	if err := application.Run(); err != nil {
		panic(err)
	}
}
