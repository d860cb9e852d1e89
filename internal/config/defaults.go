package config

import "time"

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:7777",
			ShutdownTimeout: 5 * time.Second,
		},
		Content: ContentConfig{
			Route:    "/sample.md",
			Debounce: 50 * time.Millisecond,
			MaxBytes: 8 << 20,
		},
		Tracker: TrackerConfig{
			SweetSpot:       100,
			IdealTop:        0,
			IdealBottom:     150,
			LowerBound:      -200,
			BottomTolerance: 50,
			FrameInterval:   16 * time.Millisecond,
			SettleDelay:     100 * time.Millisecond,
		},
		Scroll: ScrollConfig{
			HeaderOffset: 100,
		},
		Render: RenderConfig{
			CodeStyle: "github",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
