package main

import (
	"os"

	"github.com/wonny/tscore/backend/cmd/tscore/commands"
)

// main is the entry point for the tscore CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/tscore [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
