package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mechiko/pdfsanitize/internal/config"
	"github.com/mechiko/pdfsanitize/internal/pipeline"
)

func runSubmit(args []string) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	shared := &sharedFlags{}
	registerSharedFlags(fs, shared)

	var (
		in               string
		out              string
		operator         string
		workstation      string
		classification   string
		policy           string
		readonlyAttested bool
	)
	fs.StringVar(&in, "in", "", "path to the input PDF (required)")
	fs.StringVar(&out, "out", "", "path to write the sanitized PDF (default: <stem>_sanitized.pdf next to -in)")
	fs.StringVar(&operator, "operator", "", "operator identifier recorded in the audit event")
	fs.StringVar(&workstation, "workstation", "", "workstation identifier recorded in the audit event")
	fs.StringVar(&classification, "classification", "", "classification tag recorded in the audit event")
	fs.StringVar(&policy, "policy", string(config.PolicyAggressive), "aggressive|lenient")
	fs.BoolVar(&readonlyAttested, "readonly-attested", false, "attest that -in is mounted read-only")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if in == "" {
		fmt.Fprintln(os.Stderr, "pdfsanitize submit: -in is required")
		return 2
	}

	ctrl, err := buildController(shared)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfsanitize submit: %v\n", err)
		return 1
	}

	p := config.PolicyAggressive
	if strings.EqualFold(policy, string(config.PolicyLenient)) {
		p = config.PolicyLenient
	}

	result := ctrl.Submit(context.Background(), pipeline.JobRequest{
		InputPath:              in,
		OutputPath:             out,
		Operator:               operator,
		WorkstationID:          workstation,
		ClassificationTag:      classification,
		Policy:                 p,
		SourceReadonlyAttested: readonlyAttested,
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(submitResult{
		EventID:      result.EventID,
		Status:       string(result.Status),
		OutputPath:   result.OutputPath,
		FailureTaxon: string(result.FailureTaxon),
		Locator:      result.Locator,
		Error:        errString(result.Err),
	})

	if result.Err != nil {
		return 1
	}
	return 0
}

// submitResult is the CLI's JSON rendering of pipeline.JobResult; the
// error is flattened to its message since error values don't marshal
// to anything useful on their own.
type submitResult struct {
	EventID      string `json:"event_id"`
	Status       string `json:"status"`
	OutputPath   string `json:"output_path,omitempty"`
	FailureTaxon string `json:"failure_taxon,omitempty"`
	Locator      string `json:"locator,omitempty"`
	Error        string `json:"error,omitempty"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
