// Package configloader builds a critlog.Config (plus the collector dial
// target) from environment variables, a YAML document, or a YAML file,
// using Viper the same way as the rest of the corpus.
package configloader

import (
	"bytes"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/viper"

	"github.com/hyp3rd/critlog"
)

const defaultEnvPrefix = "CRITLOG"

// RuntimeConfig is everything configloader can populate: the Logger tuning
// knobs plus the collector address New's caller needs to build a
// transport.Opener. It is not itself a critlog.Config because Config.Opener
// has no textual representation.
type RuntimeConfig struct {
	Config      critlog.Config
	Target      string
	DialTimeout time.Duration
}

// FromEnv builds a RuntimeConfig from environment variables under prefix
// (case-insensitive, "." replaced with "_"). An empty prefix uses "CRITLOG".
func FromEnv(prefix string) (RuntimeConfig, error) {
	v := viper.New()

	if err := bindEnvironment(v, normalizePrefix(prefix)); err != nil {
		return RuntimeConfig{}, err
	}

	return fromViper(v)
}

// FromYAML builds a RuntimeConfig from a YAML document.
func FromYAML(data []byte) (RuntimeConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return RuntimeConfig{}, ewrap.Wrap(err, "reading YAML configuration")
	}

	return fromViper(v)
}

// FromFile builds a RuntimeConfig from a YAML file, then applies
// CRITLOG_-prefixed environment overrides on top of it.
func FromFile(path string) (RuntimeConfig, error) {
	v := viper.New()

	if err := bindEnvironment(v, defaultEnvPrefix); err != nil {
		return RuntimeConfig{}, err
	}

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return RuntimeConfig{}, ewrap.Wrap(err, "reading configuration file").WithMetadata("path", path)
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (RuntimeConfig, error) {
	var raw rawConfig

	if err := v.Unmarshal(&raw); err != nil {
		return RuntimeConfig{}, ewrap.Wrap(err, "decoding configuration")
	}

	return applyRaw(raw)
}

func bindEnvironment(v *viper.Viper, prefix string) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()

	for _, key := range allKeys() {
		if err := v.BindEnv(key); err != nil {
			return ewrap.Wrap(err, "binding environment key").
				WithMetadata("key", key).
				WithMetadata("prefix", prefix)
		}
	}

	return nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return defaultEnvPrefix
	}

	prefix = strings.TrimSuffix(prefix, "_")
	prefix = strings.ReplaceAll(prefix, "-", "_")

	return strings.ToUpper(prefix)
}
