package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// sections: GOLIVEDOCS_SERVER__ADDR sets server.addr.
const EnvPrefix = "GOLIVEDOCS_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides. A missing file is not an error; an empty
// path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "reading config %s", path)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "accessing config %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "loading env overrides")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	return cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

var validFormats = map[string]bool{
	"text": true,
	"json": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if !strings.HasPrefix(c.Content.Route, "/") {
		return errors.Errorf("content.route %q must start with /", c.Content.Route)
	}
	if c.Content.MaxBytes <= 0 {
		return errors.New("content.max_bytes must be positive")
	}
	if c.Content.Debounce < 0 {
		return errors.New("content.debounce must be non-negative")
	}
	// Reloads are driven by changes to the watched file.
	if c.Content.URL != "" && c.Content.Path == "" {
		return errors.New("content.url requires content.path")
	}

	t := c.Tracker
	if t.IdealTop > t.IdealBottom {
		return errors.Errorf("tracker.ideal_top %v exceeds tracker.ideal_bottom %v", t.IdealTop, t.IdealBottom)
	}
	if t.LowerBound > t.IdealTop {
		return errors.New("tracker.lower_bound must not exceed tracker.ideal_top")
	}
	if t.BottomTolerance < 0 {
		return errors.New("tracker.bottom_tolerance must be non-negative")
	}
	if t.FrameInterval <= 0 || t.SettleDelay <= 0 {
		return errors.New("tracker.frame_interval and tracker.settle_delay must be positive")
	}
	if c.Scroll.HeaderOffset < 0 {
		return errors.New("scroll.header_offset must be non-negative")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	if !validFormats[c.Log.Format] {
		return errors.Errorf("invalid log.format %q: must be one of text, json", c.Log.Format)
	}
	return nil
}
