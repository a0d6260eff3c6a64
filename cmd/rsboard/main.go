package main

import (
	"os"

	"github.com/wonny/rsboard/cmd/rsboard/commands"
)

// main is the entry point for the rsboard CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/rsboard [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
