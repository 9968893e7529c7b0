// Package config loads the read-only, schema-validated configuration
// record the pipeline controller runs under (spec §6.3). The record
// is immutable once loaded: no module-level mutable state beyond the
// loaded record itself and the HMAC key handle it carries.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Policy controls how the whitelist parser reacts to a disallowed
// construct.
type Policy string

const (
	// PolicyAggressive rejects the whole document on any disallowed
	// construct.
	PolicyAggressive Policy = "AGGRESSIVE"
	// PolicyLenient drops the offending construct and logs it, letting
	// the rest of the document through.
	PolicyLenient Policy = "LENIENT"
)

// Configuration is the flat, validated record every other component
// reads at startup. It is never mutated after Load returns.
type Configuration struct {
	Policy                 Policy        `yaml:"policy"`
	MemoryLimitBytes       int64         `yaml:"memory_limit_bytes"`
	Timeout                time.Duration `yaml:"-"`
	TimeoutMs              int64         `yaml:"timeout_ms"`
	MaxInputBytes          int64         `yaml:"max_input_bytes"`
	MaxPages               int           `yaml:"max_pages"`
	MaxOpsPerPage          int           `yaml:"max_ops_per_page"`
	MaxImagePixels         int64         `yaml:"max_image_pixels"`
	MaxDecodeOutputBytes   int64         `yaml:"max_decode_output_bytes"`
	AuditDir               string        `yaml:"audit_dir"`
	HMACKeyRef             string        `yaml:"hmac_key_ref"`
	SourceReadonlyRequired bool          `yaml:"source_readonly_required"`
	AllowedImageFilters    []string      `yaml:"allowed_image_filters"`
}

// Default returns the built-in configuration used when no signed
// record is supplied, mirroring the conservative limits in
// internal/ir and internal/whitelist.
func Default() *Configuration {
	return &Configuration{
		Policy:                 PolicyAggressive,
		MemoryLimitBytes:       512 << 20,
		Timeout:                30_000 * time.Millisecond,
		TimeoutMs:              30_000,
		MaxInputBytes:          500 << 20,
		MaxPages:               10_000,
		MaxOpsPerPage:          250_000,
		MaxImagePixels:         20_000 * 20_000,
		MaxDecodeOutputBytes:   256 << 20,
		AuditDir:               "./audit",
		SourceReadonlyRequired: false,
		AllowedImageFilters:    []string{"FlateDecode", "DCTDecode", "CCITTFaxDecode"},
	}
}

func (c *Configuration) validate() error {
	if c.Policy != PolicyAggressive && c.Policy != PolicyLenient {
		return errors.Errorf("config: unknown policy %q", c.Policy)
	}
	if c.MemoryLimitBytes <= 0 {
		return errors.New("config: memory_limit_bytes must be positive")
	}
	if c.TimeoutMs <= 0 {
		return errors.New("config: timeout_ms must be positive")
	}
	if c.MaxInputBytes <= 0 {
		return errors.New("config: max_input_bytes must be positive")
	}
	if c.MaxPages <= 0 || c.MaxOpsPerPage <= 0 || c.MaxImagePixels <= 0 || c.MaxDecodeOutputBytes <= 0 {
		return errors.New("config: parser resource caps must be positive")
	}
	if c.AuditDir == "" {
		return errors.New("config: audit_dir must be set")
	}
	if c.SourceReadonlyRequired && c.HMACKeyRef == "" {
		return errors.New("config: hmac_key_ref required when source_readonly_required is set")
	}
	return nil
}

// Load reads a YAML configuration from path, applies Default()'s
// values for any unset field, and validates the result. It does not
// verify a signature; use LoadSigned for a configuration that must
// carry one.
func Load(path string) (*Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	c := Default()
	if err := loadYAMLInto(c, raw); err != nil {
		return nil, err
	}
	return c, nil
}

func loadYAMLInto(c *Configuration, raw []byte) error {
	if err := yaml.Unmarshal(raw, c); err != nil {
		return errors.Wrap(err, "config: parse yaml")
	}
	c.Timeout = time.Duration(c.TimeoutMs) * time.Millisecond
	return c.validate()
}
