package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type EmailConfig struct {
	Region            string  `mapstructure:"region"`
	SenderAddress     string  `mapstructure:"sender_address"`
	MaxSendsPerSecond float32 `mapstructure:"max_sends_per_second"`
}

func (config EmailConfig) validate() error {

	var missingFields []string

	if config.Region == "" {
		missingFields = append(missingFields, "region")
	}

	if config.SenderAddress == "" {
		missingFields = append(missingFields, "sender_address")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required variables: %s", strings.Join(missingFields, ", "))
	}

	return nil
}

func (config EmailConfig) bindEnvironmentVariables() error {

	if err := viper.BindEnv("email.region", "AWS_REGION"); err != nil {
		return err
	}

	if err := viper.BindEnv("email.sender_address", "SENDER_ADDRESS"); err != nil {
		return err
	}

	return viper.BindEnv("email.max_sends_per_second", "MAX_SENDS_PER_SECOND")
}
