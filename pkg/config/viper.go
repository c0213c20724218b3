package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads <configName>.yaml from configPath (falling back to "." and
// "./config") and layers environment variables on top, with "." in keys
// mapped to "_" (server.port -> SERVER_PORT). A missing file is not an error.
func Load(configPath, configName string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return v, nil
}

// BindEnv binds each key to its legacy environment variable name. viper only
// errors on an empty key list, which the callers never pass.
func BindEnv(v *viper.Viper, bindings map[string]string) {
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}
