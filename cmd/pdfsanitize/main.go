// Command pdfsanitize drives the sanitization pipeline: submit a job,
// run as the isolated parser worker, or expose the job API over HTTP.
package main

import (
	"os"

	"github.com/mechiko/pdfsanitize/internal/isolation"
)

func main() {
	// The isolation harness re-execs this same binary with argv[1] set
	// to the worker marker; that path bypasses command dispatch and
	// flag parsing entirely, since the worker's input arrives over
	// stdin, not argv.
	if len(os.Args) >= 2 && os.Args[1] == isolation.WorkerMarker {
		os.Exit(runWorker())
	}

	r := newRegistry()
	r.register("submit", "sanitize one PDF and print the audit result", runSubmit)
	r.register("serve", "run the HTTP job-submission API", runServe)

	if len(os.Args) < 2 {
		r.printUsage()
		os.Exit(2)
	}

	os.Exit(r.dispatch(os.Args[1], os.Args[2:]))
}
