package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spf13/viper"
)

var (
	conf *Config
)

const (
	SourceKafka    = "kafka"
	SourceRabbitMQ = "rabbitmq"
)

type (
	Config struct {
		Kafka       Kafka       `mapstructure:"kafka"`
		RabbitMQ    RabbitMQ    `mapstructure:"rabbitmq"`
		HTTP        HTTP        `mapstructure:"http"`
		Dispatch    Dispatch    `mapstructure:"dispatch"`
		Auth        Auth        `mapstructure:"auth"`
		OrderEvents OrderEvents `mapstructure:"order_events"`
		Debug       bool        `mapstructure:"debug"`
	}

	HTTP struct {
		DispatchPort string `mapstructure:"dispatch_port"`
		GatewayPort  string `mapstructure:"gateway_port"`
	}

	Kafka struct {
		Connection KafkaConnection `mapstructure:"connection"`
		Consumer   KafkaConsumer   `mapstructure:"consumer"`
	}

	KafkaConnection struct {
		Brokers  []string `mapstructure:"brokers"`
		Username string   `mapstructure:"username"`
		Password string   `mapstructure:"password"`
		TLS      bool     `mapstructure:"tls"`
	}

	KafkaConsumer struct {
		MinBytes      int    `mapstructure:"min_bytes"`
		MaxBytes      int    `mapstructure:"max_bytes"`
		LocationTopic string `mapstructure:"location_topic"`
		OrderTopic    string `mapstructure:"order_topic"`
		GroupIDPrefix string `mapstructure:"group_id_prefix"`
		// InstanceID must be unique per running dispatch instance and stable across its restarts.
		// It defaults to the host name.
		InstanceID string `mapstructure:"instance_id"`
	}

	RabbitMQ struct {
		URL      string `mapstructure:"url"`
		Exchange string `mapstructure:"exchange"`
	}

	Dispatch struct {
		StaleAfter         time.Duration `mapstructure:"stale_after"`
		SweepInterval      time.Duration `mapstructure:"sweep_interval"`
		NearbyRadiusMeters float64       `mapstructure:"nearby_radius_meters"`
		SendBuffer         int           `mapstructure:"send_buffer"`
	}

	Auth struct {
		Enabled   bool   `mapstructure:"enabled"`
		JWTSecret string `mapstructure:"jwt_secret"`
	}

	// OrderEvents selects where fire calls from the order services come from.
	// With an empty source only the internal HTTP endpoints accept them.
	OrderEvents struct {
		Source string `mapstructure:"source"`
	}
)

// GroupID is the consumer group of this instance. Each instance reads in its own group
// because its clients may be in any room.
func (c KafkaConsumer) GroupID() string {
	return c.GroupIDPrefix + "-" + c.InstanceID
}

func Get() *Config {
	return conf
}

// Set replaces the package configuration.
func Set(c *Config) {
	conf = c
}

func SetFromFile(path string) {
	c, err := Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("fatal when reading config file")
	}

	conf = c
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	if c.Kafka.Consumer.InstanceID == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("kafka.consumer.instance_id is not set and the host name is unknown: %w", err)
		}
		c.Kafka.Consumer.InstanceID = host
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.dispatch_port", "8080")
	v.SetDefault("http.gateway_port", "8081")
	v.SetDefault("kafka.consumer.min_bytes", 1)
	v.SetDefault("kafka.consumer.max_bytes", 10_000_000)
	v.SetDefault("kafka.consumer.location_topic", "driver-locations")
	v.SetDefault("kafka.consumer.order_topic", "order-events")
	v.SetDefault("kafka.consumer.group_id_prefix", "dispatch")
	v.SetDefault("rabbitmq.exchange", "order-events")
	v.SetDefault("dispatch.stale_after", 2*time.Minute)
	v.SetDefault("dispatch.sweep_interval", time.Minute)
	v.SetDefault("dispatch.nearby_radius_meters", 500)
	v.SetDefault("dispatch.send_buffer", 64)
	v.SetDefault("auth.enabled", false)
}

func (c *Config) validate() error {
	switch c.OrderEvents.Source {
	case "", SourceKafka, SourceRabbitMQ:
	default:
		return fmt.Errorf("order_events.source: unknown source %q", c.OrderEvents.Source)
	}
	if c.OrderEvents.Source == SourceRabbitMQ && c.RabbitMQ.URL == "" {
		return fmt.Errorf("rabbitmq.url is required when order events come from rabbitmq")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if c.Dispatch.SweepInterval <= 0 {
		return fmt.Errorf("dispatch.sweep_interval must be positive")
	}
	return nil
}
