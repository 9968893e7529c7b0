package main

import (
	"crypto/x509"
	"flag"
	"fmt"
	"os"

	"github.com/mechiko/pdfsanitize/internal/audit"
	"github.com/mechiko/pdfsanitize/internal/config"
	"github.com/mechiko/pdfsanitize/internal/isolation"
	"github.com/mechiko/pdfsanitize/internal/pipeline"
)

const auditSecretEnv = "PDFSANITIZE_AUDIT_SECRET"

// sharedFlags are the flags every command that builds a Controller
// needs; submit and serve each add their own on top.
type sharedFlags struct {
	configPath  string
	sigPath     string
	caPath      string
	auditDir    string
	auditKeyRef string
	outputRoot  string
	rateLimit   float64
}

func registerSharedFlags(fs *flag.FlagSet, f *sharedFlags) {
	fs.StringVar(&f.configPath, "config", "", "path to a signed YAML configuration file")
	fs.StringVar(&f.sigPath, "sig", "", "path to the configuration's detached PKCS#7 signature")
	fs.StringVar(&f.caPath, "ca", "", "PEM file of trusted roots for the configuration signer's certificate chain")
	fs.StringVar(&f.auditDir, "audit-dir", "", "override the configuration's audit_dir")
	fs.StringVar(&f.auditKeyRef, "audit-key-ref", "default", "HKDF info string identifying the audit HMAC subkey")
	fs.StringVar(&f.outputRoot, "output-root", "", "fallback directory for sanitized output when the input directory is not writable")
	fs.Float64Var(&f.rateLimit, "rate", 2.0, "maximum job submissions per second")
}

// loadConfiguration honors -config/-sig, falling back to
// config.Default when neither is set, matching the teacher's
// NewDefaultConfiguration fallback in cmd/pdfcpu. A configuration file
// is only loaded together with its signature: -config or -sig alone is
// an error. -ca is optional: an
// absent trust root means the signer's certificate chain is not
// checked, only the signature itself (see config.verifyDetachedSignature).
func loadConfiguration(f *sharedFlags) (*config.Configuration, error) {
	switch {
	case f.configPath != "" && f.sigPath != "":
		roots, err := loadTrustedRoots(f.caPath)
		if err != nil {
			return nil, err
		}
		return config.LoadSigned(f.configPath, f.sigPath, roots)
	case f.configPath != "" || f.sigPath != "":
		return nil, fmt.Errorf("-config and -sig must be given together")
	default:
		return config.Default(), nil
	}
}

func loadTrustedRoots(caPath string) (*x509.CertPool, error) {
	if caPath == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("read trusted roots: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates parsed from %s", caPath)
	}
	return pool, nil
}

// buildController assembles a pipeline.Controller from shared flags
// and the process environment. The audit HMAC secret is read from
// PDFSANITIZE_AUDIT_SECRET rather than a flag so it never appears in
// a process listing or shell history.
func buildController(f *sharedFlags) (*pipeline.Controller, error) {
	cfg, err := loadConfiguration(f)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if f.auditDir != "" {
		cfg.AuditDir = f.auditDir
	}

	secret := os.Getenv(auditSecretEnv)
	if secret == "" {
		return nil, fmt.Errorf("%s must be set to the audit HMAC secret", auditSecretEnv)
	}
	key, err := audit.DeriveKey([]byte(secret), f.auditKeyRef)
	if err != nil {
		return nil, fmt.Errorf("derive audit key: %w", err)
	}

	writer := &audit.Writer{Dir: cfg.AuditDir}
	harness := isolation.Harness{ExecPath: os.Args[0]}
	return pipeline.New(cfg, harness, writer, key, f.outputRoot, f.rateLimit), nil
}
