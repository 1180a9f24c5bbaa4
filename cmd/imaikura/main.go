package main

import (
	"os"

	"github.com/creco/imaikura/cmd/imaikura/commands"
)

// main is the entry point for the imaikura CLI
// ⭐ 統合 CLI エントリーポイント: go run ./cmd/imaikura [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
