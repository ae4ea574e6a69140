package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	State    State    `json:"state" yaml:"state" mapstructure:"state"`
	SSH      SSH      `json:"ssh" yaml:"ssh" mapstructure:"ssh"`
	Transfer Transfer `json:"transfer" yaml:"transfer" mapstructure:"transfer"`
	Journal  Journal  `json:"journal" yaml:"journal" mapstructure:"journal"`
	Emby     Emby     `json:"emby" yaml:"emby" mapstructure:"emby"`
	Log      Log      `json:"log" yaml:"log" mapstructure:"log"`
}

// State locates the persisted sync state document
type State struct {
	File        string        `json:"file" yaml:"file" mapstructure:"file" validate:"required"`
	LockTimeout time.Duration `json:"lockTimeout" yaml:"lockTimeout" mapstructure:"lockTimeout" validate:"gte=0"`
}

type SSH struct {
	Timeout     time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	KnownHosts  string        `json:"knownHosts" yaml:"knownHosts" mapstructure:"knownHosts"`
	DefaultPort int           `json:"defaultPort" yaml:"defaultPort" mapstructure:"defaultPort" validate:"gte=1,lte=65535"`
}

type Transfer struct {
	Progress   bool `json:"progress" yaml:"progress" mapstructure:"progress"`
	BufferSize int  `json:"bufferSize" yaml:"bufferSize" mapstructure:"bufferSize" validate:"gte=0"`
}

// Journal configuration is assumed to be for sqlite database only currently
type Journal struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	FilePath string `json:"filePath" yaml:"filePath" mapstructure:"filePath" validate:"required_if=Enabled true"`
}

// Emby houses the http client settings used when talking to a media library.
// Credentials live in the state document next to each connection.
type Emby struct {
	MaxRetries int           `json:"maxRetries" yaml:"maxRetries" mapstructure:"maxRetries" validate:"gte=0"`
	Backoff    time.Duration `json:"backoff" yaml:"backoff" mapstructure:"backoff" validate:"gte=0"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	Client     string        `json:"client" yaml:"client" mapstructure:"client"`
	Device     string        `json:"device" yaml:"device" mapstructure:"device"`
}

type Log struct {
	Level string `json:"level" yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	JSON  bool   `json:"json" yaml:"json" mapstructure:"json"`
}

type ConfigUnmarshaler interface {
	ReadInConfig() error
	Unmarshal(any, ...viper.DecoderConfigOption) error
	ConfigFileUsed() string
}

// New reads a new configuration
func New(cu ConfigUnmarshaler) (Config, error) {
	var c Config

	if cu.ConfigFileUsed() != "" {
		err := cu.ReadInConfig()
		if err != nil {
			return c, err
		}
	}

	err := cu.Unmarshal(&c)
	return c, err
}

// Validate checks the configuration against its struct tags
func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
