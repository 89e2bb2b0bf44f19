package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if got := cfg.App.HTTP.Address(); got != "127.0.0.1:8080" {
		t.Errorf("address = %q", got)
	}
}

func TestExportConfig_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ExportConfig)
	}{
		{"zero frames", func(c *ExportConfig) { c.Frames = 0 }},
		{"bad matte", func(c *ExportConfig) { c.Matte = "#12" }},
		{"unknown palette", func(c *ExportConfig) { c.Palette = "adaptive" }},
		{"huge scale", func(c *ExportConfig) { c.Scale = 20 }},
		{"one colour", func(c *ExportConfig) { c.MaxColors = 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(&cfg.Export)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAssetsConfig_RemotePolicy(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Assets.RemotePolicy = "proxy"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "assets") {
		t.Errorf("err = %v, want assets validation error", err)
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#f3f4f6")
	if err != nil || c.R != 0xf3 || c.G != 0xf4 || c.B != 0xf6 || c.A != 0xff {
		t.Errorf("got %v, %v", c, err)
	}
	c, err = ParseHexColor("fff")
	if err != nil || c.R != 0xff || c.B != 0xff {
		t.Errorf("short form: %v, %v", c, err)
	}
	if _, err := ParseHexColor("#zzzzzz"); err == nil {
		t.Error("expected error")
	}
}

func TestExportConfig_AnimatedOptions(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Export.Frames = 4
	cfg.Export.Matte = "#000000"
	opts := cfg.Export.AnimatedOptions()
	if opts.Frames != 4 || opts.FrameDelay != 100*time.Millisecond {
		t.Errorf("opts = %+v", opts)
	}
	if r, g, b, _ := opts.Matte.RGBA(); r != 0 || g != 0 || b != 0 {
		t.Errorf("matte = %v", opts.Matte)
	}
}
