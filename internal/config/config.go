package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultSourceHost      = "broker.hivemq.com"
	DefaultDestinationHost = "mosquitto"
	DefaultBrokerPort      = 1883
	DefaultTopic           = "Temp"
	DefaultMetricsPort     = 9000
	DefaultRetryDelay      = 5 * time.Second
	DefaultKeepAlive       = 60 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultClientIDPrefix  = "mqtt-bridge"
	DefaultLogLevel        = "info"
	DefaultLogEncoding     = "console"
)

// Keys double as environment variable names (upper-cased by viper).
const (
	KeySourceHost       = "ext_mqtt_address"
	KeySourcePort       = "ext_mqtt_port"
	KeySourceTopic      = "ext_topic"
	KeyDestinationHost  = "int_mqtt_address"
	KeyDestinationPort  = "int_mqtt_port"
	KeyDestinationTopic = "int_topic"
	KeyMetricsPort      = "metrics_port"
	KeyRetryDelay       = "retry_delay"
	KeyKeepAlive        = "keepalive"
	KeyConnectTimeout   = "connect_timeout"
	KeyClientIDPrefix   = "client_id_prefix"
	KeyLogLevel         = "log_level"
	KeyLogEncoding      = "log_encoding"
)

type Config struct {
	SourceHost       string        `mapstructure:"ext_mqtt_address"`
	SourcePort       int           `mapstructure:"ext_mqtt_port"`
	SourceTopic      string        `mapstructure:"ext_topic"`
	DestinationHost  string        `mapstructure:"int_mqtt_address"`
	DestinationPort  int           `mapstructure:"int_mqtt_port"`
	DestinationTopic string        `mapstructure:"int_topic"`
	MetricsPort      int           `mapstructure:"metrics_port"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	KeepAlive        time.Duration `mapstructure:"keepalive"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	ClientIDPrefix   string        `mapstructure:"client_id_prefix"`
	LogLevel         string        `mapstructure:"log_level"`
	LogEncoding      string        `mapstructure:"log_encoding"`

	ConfigPath string `mapstructure:"-"`
}

// Endpoint is one side of the bridge: a broker address plus the topic used on it.
type Endpoint struct {
	Name  string
	Host  string
	Port  int
	Topic string
}

func (c Config) Source() Endpoint {
	return Endpoint{Name: "source", Host: c.SourceHost, Port: c.SourcePort, Topic: c.SourceTopic}
}

func (c Config) Destination() Endpoint {
	return Endpoint{Name: "destination", Host: c.DestinationHost, Port: c.DestinationPort, Topic: c.DestinationTopic}
}

// Load resolves the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A missing file is not an error.
func Load(configPath string) (Config, error) {
	var cfg Config

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(KeySourceHost, DefaultSourceHost)
	v.SetDefault(KeySourcePort, DefaultBrokerPort)
	v.SetDefault(KeySourceTopic, DefaultTopic)
	v.SetDefault(KeyDestinationHost, DefaultDestinationHost)
	v.SetDefault(KeyDestinationPort, DefaultBrokerPort)
	v.SetDefault(KeyDestinationTopic, DefaultTopic)
	v.SetDefault(KeyMetricsPort, DefaultMetricsPort)
	v.SetDefault(KeyRetryDelay, DefaultRetryDelay)
	v.SetDefault(KeyKeepAlive, DefaultKeepAlive)
	v.SetDefault(KeyConnectTimeout, DefaultConnectTimeout)
	v.SetDefault(KeyClientIDPrefix, DefaultClientIDPrefix)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogEncoding, DefaultLogEncoding)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
