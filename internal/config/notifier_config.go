package config

import (
	"time"

	"github.com/spf13/viper"
)

// NotifierConfig configures the dispatcher's delivery channels. The telegram
// channel is enabled only when a bot token is present.
type NotifierConfig struct {
	TelegramToken string        `mapstructure:"telegram_token"`
	QueueSize     int           `mapstructure:"queue_size"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

func (config NotifierConfig) bindEnvironmentVariables() error {

	if err := viper.BindEnv("notifier.telegram_token", "TELEGRAM_TOKEN"); err != nil {
		return err
	}

	return viper.BindEnv("notifier.queue_size", "NOTIFIER_QUEUE_SIZE")
}
