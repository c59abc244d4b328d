package config

import (
	"time"

	"github.com/valpere/polytran/internal/translator"
)

// Settings is the read-only configuration the engine consults before and
// during execution. It is safe to copy.
type Settings struct {
	EnabledProviders     map[string]bool
	Providers            map[string]translator.ServiceConfig
	Vendors              map[string]VendorConfig
	RequestTimeout       time.Duration
	VerifyOutputLanguage bool
}

// ProviderEnabled reports whether the provider id is in the enabled set.
func (s Settings) ProviderEnabled(id string) bool {
	return s.EnabledProviders[id]
}

// ServiceConfig returns the provider's service configuration with the global
// request timeout applied when the provider sets none.
func (s Settings) ServiceConfig(id string) translator.ServiceConfig {
	cfg := s.Providers[id]
	if cfg.Timeout <= 0 {
		cfg.Timeout = s.RequestTimeout
	}
	return cfg
}

// Vendor returns the vendor configuration and whether it is enabled.
func (s Settings) Vendor(name string) (VendorConfig, bool) {
	v, ok := s.Vendors[name]
	if !ok {
		return VendorConfig{}, false
	}
	if v.Timeout <= 0 {
		v.Timeout = s.RequestTimeout
	}
	return v, v.Enabled
}
