package main

import (
	"log"

	tool "github.com/sandeepkv93/step-leaderboard-service/internal/tools/seed"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
