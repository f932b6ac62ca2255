// Command danmaku inspects, simulates and renders comment overlay files.
package main

import (
	"log"

	"github.com/go-drift/danmaku/cmd/danmaku/cmd"
)

func main() {
	if err := cmd.New().Execute(); err != nil {
		log.Fatalf("error during command execution: %v", err)
	}
}
