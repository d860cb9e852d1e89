package config

import "time"

// Config is the top-level go-live-docs configuration, corresponding to
// go-live-docs.yml.
type Config struct {
	Server  ServerConfig  `yaml:"server" koanf:"server"`
	Content ContentConfig `yaml:"content" koanf:"content"`
	Frame   FrameConfig   `yaml:"frame" koanf:"frame"`
	Tracker TrackerConfig `yaml:"tracker" koanf:"tracker"`
	Scroll  ScrollConfig  `yaml:"scroll" koanf:"scroll"`
	Render  RenderConfig  `yaml:"render" koanf:"render"`
	Log     LogConfig     `yaml:"log" koanf:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr" koanf:"addr"`
	// AllowedOrigins may fetch the markdown source cross-origin.
	AllowedOrigins  []string      `yaml:"allowed_origins" koanf:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
}

// ContentConfig describes where the markdown comes from.
type ContentConfig struct {
	// Path is the markdown file served and watched. Empty means the content
	// is published by an editor.
	Path string `yaml:"path" koanf:"path"`
	// Route is the URL path the markdown source is served on.
	Route string `yaml:"route" koanf:"route"`
	// URL overrides the address the loader fetches from. It requires Path:
	// changes to the file trigger the reloads.
	URL      string        `yaml:"url" koanf:"url"`
	Debounce time.Duration `yaml:"debounce" koanf:"debounce"`
	MaxBytes int64         `yaml:"max_bytes" koanf:"max_bytes"`
}

// FrameConfig holds the origins the two frames talk to each other with.
// Empty origins mean "*".
type FrameConfig struct {
	ParentOrigin string `yaml:"parent_origin" koanf:"parent_origin"`
	ChildOrigin  string `yaml:"child_origin" koanf:"child_origin"`
	// ChildBaseURL serves the embedded document from another host.
	ChildBaseURL string `yaml:"child_base_url" koanf:"child_base_url"`
}

// TrackerConfig tunes the active heading rule and its timers.
type TrackerConfig struct {
	SweetSpot       float64       `yaml:"sweet_spot" koanf:"sweet_spot"`
	IdealTop        float64       `yaml:"ideal_top" koanf:"ideal_top"`
	IdealBottom     float64       `yaml:"ideal_bottom" koanf:"ideal_bottom"`
	LowerBound      float64       `yaml:"lower_bound" koanf:"lower_bound"`
	BottomTolerance float64       `yaml:"bottom_tolerance" koanf:"bottom_tolerance"`
	FrameInterval   time.Duration `yaml:"frame_interval" koanf:"frame_interval"`
	SettleDelay     time.Duration `yaml:"settle_delay" koanf:"settle_delay"`
}

// ScrollConfig holds TOC scrolling settings.
type ScrollConfig struct {
	HeaderOffset float64 `yaml:"header_offset" koanf:"header_offset"`
}

// RenderConfig holds markdown rendering settings.
type RenderConfig struct {
	Sanitize  bool   `yaml:"sanitize" koanf:"sanitize"`
	CodeStyle string `yaml:"code_style" koanf:"code_style"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}
