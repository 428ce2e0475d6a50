package envconfig

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. GOGUARD_SIGNER_SECRET
// for signer.secret.
const EnvPrefix = "GOGUARD"

// Load returns goGuard.DefaultConfig overlaid with the YAML file at path
// (skipped when path is empty) and then with GOGUARD_* environment
// variables. The result is not validated; Build does that.
func Load(path string) (goGuard.Config, error) {
	v, err := newViper(path)
	if err != nil {
		return goGuard.Config{}, err
	}

	var cfg goGuard.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return goGuard.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Render encodes cfg as YAML, the same format Load reads.
func Render(cfg goGuard.Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Seeding every key from the defaults lets AutomaticEnv override keys
	// that the file does not mention.
	defaults, err := Render(goGuard.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("seed defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}
