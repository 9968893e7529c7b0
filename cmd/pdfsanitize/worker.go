package main

import (
	"os"

	"github.com/mechiko/pdfsanitize/internal/isolation"
)

// runWorker is never reached through the registry: isolation.Harness
// re-execs this same binary with os.Args[1] == isolation.WorkerMarker,
// and main() intercepts that before any flag parsing happens.
func runWorker() int {
	return isolation.RunWorker(os.Stdin, os.Stdout)
}
