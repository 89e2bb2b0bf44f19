package internal

import (
	"fmt"
	"image/color"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/cardsmith/internal/assets"
	"github.com/starford/cardsmith/internal/capture"
	"github.com/starford/cardsmith/internal/export"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Auth   AuthConfig        `yaml:"auth"`
	Assets AssetsConfig      `yaml:"assets"`
	Export ExportConfig      `yaml:"export"`
	Card   CardConfig        `yaml:"card"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Assets.Validate(); err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// AssetsConfig controls uploaded and remote images.
type AssetsConfig struct {
	Path         string              `yaml:"path"`
	RemotePolicy assets.RemotePolicy `yaml:"remote_policy"`
	MaxBytes     int64               `yaml:"max_bytes"`
	FetchTimeout time.Duration       `yaml:"fetch_timeout"`
}

// Validate validates the assets configuration.
func (c *AssetsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.RemotePolicy, validation.Required,
			validation.In(assets.PolicyFetch, assets.PolicyOmit, assets.PolicyTaint)),
		validation.Field(&c.MaxBytes, validation.Required, validation.Min(int64(1024))),
		validation.Field(&c.FetchTimeout, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// ExportConfig holds capture settings.
type ExportConfig struct {
	Scale       float64             `yaml:"scale"`
	SettleDelay time.Duration       `yaml:"settle_delay"`
	Frames      int                 `yaml:"frames"`
	FrameDelay  time.Duration       `yaml:"frame_delay"`
	Matte       string              `yaml:"matte"`
	Palette     capture.PaletteMode `yaml:"palette"`
	MaxColors   int                 `yaml:"max_colors"`
	DefaultName string              `yaml:"default_name"`
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Scale, validation.Required, validation.Min(0.25), validation.Max(8.0)),
		validation.Field(&c.SettleDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.Frames, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.FrameDelay, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.Matte, validation.Required, validation.By(func(any) error {
			_, err := ParseHexColor(c.Matte)
			return err
		})),
		validation.Field(&c.Palette, validation.In(capture.PerFramePalette, capture.SharedPalette)),
		validation.Field(&c.MaxColors, validation.Required, validation.Min(2), validation.Max(256)),
		validation.Field(&c.DefaultName, validation.Required),
	)
}

// AnimatedOptions converts the configuration to capture options.
func (c *ExportConfig) AnimatedOptions() capture.AnimatedOptions {
	matte, err := ParseHexColor(c.Matte)
	if err != nil {
		matte = capture.DefaultMatte
	}
	return capture.AnimatedOptions{
		Frames:     c.Frames,
		FrameDelay: c.FrameDelay,
		Matte:      matte,
		MaxColors:  c.MaxColors,
		Palette:    c.Palette,
	}
}

// CardConfig points at an optional YAML card file that is loaded at start
// and watched for changes.
type CardConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// ParseHexColor parses #rgb or #rrggbb.
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Assets: AssetsConfig{
			Path:         "./assets",
			RemotePolicy: assets.PolicyFetch,
			MaxBytes:     10 << 20,
			FetchTimeout: 15 * time.Second,
		},
		Export: ExportConfig{
			Scale:       capture.DefaultScale,
			SettleDelay: capture.DefaultSettleDelay,
			Frames:      capture.DefaultFrames,
			FrameDelay:  capture.DefaultFrameDelay,
			Matte:       "#f3f4f6",
			Palette:     capture.PerFramePalette,
			MaxColors:   capture.DefaultMaxColors,
			DefaultName: export.DefaultStem,
		},
		Card: CardConfig{
			Watch: true,
		},
	}
}
