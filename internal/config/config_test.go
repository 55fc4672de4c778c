package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestSetDefaultsCartSection(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal defaults failed: %v", err)
	}
	if cfg.Cart.LogoutPolicy != "clear" {
		t.Fatalf("unexpected logout policy: %s", cfg.Cart.LogoutPolicy)
	}
	if cfg.Cart.BackendBulkSeed {
		t.Fatalf("bulk seed should default to false")
	}
	if cfg.Postal.PrimaryURL == "" || cfg.Postal.SecondaryURL == "" {
		t.Fatalf("postal lookup urls should have defaults")
	}
	if cfg.Catalog.BaseURL == "" || cfg.Catalog.ListPath == "" || cfg.Catalog.ProductPath != "/products" {
		t.Fatalf("unexpected catalog defaults: %+v", cfg.Catalog)
	}
	if cfg.Identity.Local.MinPasswordLength != 6 {
		t.Fatalf("unexpected min password length: %d", cfg.Identity.Local.MinPasswordLength)
	}
}

func TestBackendTimeoutFallback(t *testing.T) {
	if got := (BackendConfig{}).Timeout(); got != 10*time.Second {
		t.Fatalf("unexpected fallback timeout: %s", got)
	}
	if got := (BackendConfig{TimeoutMS: 250}).Timeout(); got != 250*time.Millisecond {
		t.Fatalf("unexpected timeout: %s", got)
	}
}
