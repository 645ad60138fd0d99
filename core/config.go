package core

import (
	"fmt"
	"strings"
)

type EncryptionConfig struct {
	// Key is the process-wide secret used by the credential vault. Setup in
	// the root package reads it once at build time to construct the vault
	// when no explicit secret provider is supplied; it is never derived from
	// request data.
	Key   string `koanf:"key" mapstructure:"key"`
	KeyID string `koanf:"key_id" mapstructure:"key_id"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Encryption  EncryptionConfig `koanf:"encryption" mapstructure:"encryption"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "onboarding",
		Encryption: EncryptionConfig{
			KeyID: "app-key",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	return nil
}
