package config

import "github.com/spf13/viper"

// IngestConfig configures the posting sync against the board API. An empty
// URL disables syncing; the pipeline then runs over whatever the store holds.
type IngestConfig struct {
	BoardAPIURL          string  `mapstructure:"board_api_url"`
	MaxRequestsPerSecond float32 `mapstructure:"max_requests_per_second"`
}

func (config IngestConfig) bindEnvironmentVariables() error {

	if err := viper.BindEnv("ingest.board_api_url", "BOARD_API_URL"); err != nil {
		return err
	}

	return viper.BindEnv("ingest.max_requests_per_second", "BOARD_MAX_REQUESTS_PER_SECOND")
}
