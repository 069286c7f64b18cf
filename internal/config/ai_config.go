package config

import "github.com/spf13/viper"

// AIConfig configures the optional cover-letter drafter. An empty key
// disables AI drafting and the artifact builder falls back to templates.
type AIConfig struct {
	Key                  string  `mapstructure:"key"`
	Model                string  `mapstructure:"model"`
	MaxRequestsPerMinute float32 `mapstructure:"max_requests_per_minute"`
	MaxRequestsPerDay    float32 `mapstructure:"max_requests_per_day"`
}

func (config AIConfig) bindEnvironmentVariables() error {

	if err := viper.BindEnv("ai.key", "AI_KEY"); err != nil {
		return err
	}

	if err := viper.BindEnv("ai.model", "AI_MODEL"); err != nil {
		return err
	}

	if err := viper.BindEnv("ai.max_requests_per_minute", "AI_MAX_REQUESTS_PER_MINUTE"); err != nil {
		return err
	}

	return viper.BindEnv("ai.max_requests_per_day", "AI_MAX_REQUESTS_PER_DAY")
}
