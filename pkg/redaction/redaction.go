// Package redaction masks sensitive data before it reaches the logs.
// The chat engine handles wallet addresses and provider API keys, both of
// which must never appear in plaintext log output.
package redaction

import (
	"fmt"
	"regexp"
	"sync"
)

// Config holds redaction configuration.
type Config struct {
	// Enabled controls whether redaction is active.
	Enabled bool `json:"enabled"`

	// RedactAPIKeys redacts provider API keys and bearer tokens.
	RedactAPIKeys bool `json:"redact_api_keys"`

	// RedactWallets redacts hex wallet addresses.
	RedactWallets bool `json:"redact_wallets"`

	// CustomPatterns allows additional regex patterns to redact.
	CustomPatterns []string `json:"custom_patterns"`

	// Replacement is the string used to replace sensitive data.
	Replacement string `json:"replacement"`
}

// DefaultConfig returns the default redaction configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		RedactAPIKeys: true,
		RedactWallets: true,
		Replacement:   "[REDACTED]",
	}
}

// Redactor applies the configured masking patterns.
type Redactor struct {
	config         Config
	compiledCustom []*regexp.Regexp
	keyPatterns    []*regexp.Regexp
	walletPatterns []*regexp.Regexp
}

var (
	apiKeyRe = []*regexp.Regexp{
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
		regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]{20,}`),
		regexp.MustCompile(`(?i)(api[_-]?key|secret[_-]?key|access[_-]?token)\s*[=:]\s*['"]?[a-zA-Z0-9_\-\.]{16,}['"]?`),
	}
	walletRe = []*regexp.Regexp{
		// EVM-style addresses and transaction hashes.
		regexp.MustCompile(`0x[a-fA-F0-9]{40}`),
		regexp.MustCompile(`0x[a-fA-F0-9]{64}`),
	}
)

// NewRedactor creates a Redactor with the given configuration.
// Invalid custom patterns are skipped silently.
func NewRedactor(config Config) *Redactor {
	r := &Redactor{config: config}
	if config.RedactAPIKeys {
		r.keyPatterns = apiKeyRe
	}
	if config.RedactWallets {
		r.walletPatterns = walletRe
	}
	for _, pattern := range config.CustomPatterns {
		re, err := regexp.Compile(pattern)
		if err == nil {
			r.compiledCustom = append(r.compiledCustom, re)
		}
	}
	return r
}

// Redact masks all sensitive data in the input string.
func (r *Redactor) Redact(input string) string {
	if !r.config.Enabled || input == "" {
		return input
	}

	replacement := r.config.Replacement
	if replacement == "" {
		replacement = "[REDACTED]"
	}

	out := input
	for _, re := range r.keyPatterns {
		out = re.ReplaceAllString(out, replacement)
	}
	for _, re := range r.walletPatterns {
		out = re.ReplaceAllString(out, replacement)
	}
	for _, re := range r.compiledCustom {
		out = re.ReplaceAllString(out, replacement)
	}
	return out
}

// RedactFields masks sensitive data inside a log field map.
// Values are formatted with %v before matching; non-string values whose
// formatted form matches a pattern are replaced with the replacement string.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	if !r.config.Enabled || len(fields) == 0 {
		return fields
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok {
			out[k] = r.Redact(s)
			continue
		}
		formatted := fmt.Sprintf("%v", v)
		if redacted := r.Redact(formatted); redacted != formatted {
			out[k] = redacted
			continue
		}
		out[k] = v
	}
	return out
}

var (
	globalMu       sync.RWMutex
	globalRedactor = NewRedactor(DefaultConfig())
)

// SetGlobalConfig replaces the process-wide redaction configuration.
func SetGlobalConfig(config Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRedactor = NewRedactor(config)
}

// Redact masks sensitive data using the global redactor.
func Redact(input string) string {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRedactor.Redact(input)
}

// RedactFields masks sensitive field values using the global redactor.
func RedactFields(fields map[string]any) map[string]any {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRedactor.RedactFields(fields)
}
