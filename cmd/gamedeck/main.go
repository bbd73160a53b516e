package main

import (
	"log"

	"github.com/MrSnakeDoc/gamedeck/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ gamedeck failed: %v", err)
	}
}
