package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN             string `env:"DATABASE_DSN,required=true"`
	RedisURL                string `env:"REDIS_URL,required=true"`
	RabbitMQURL             string `env:"RABBITMQ_URL,required=true"`
	MailerURL               string `env:"MAILER_URL,required=true"`
	MailerToken             string `env:"MAILER_TOKEN,required=true"`
	MailerTimeoutSec        int    `env:"MAILER_TIMEOUT_SEC,default=15"`
	OperatorID              string `env:"OPERATOR_ID,required=true"`
	GatewayRatePerSec       int    `env:"GATEWAY_RATE_PER_SEC,default=10"`
	AutoDispatchIntervalSec int    `env:"AUTO_DISPATCH_INTERVAL_SEC,default=0"`
	APIPort                 int    `env:"API_PORT,default=8080"`
	LogLevel                string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
