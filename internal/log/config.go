package log

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LoggerConfig is the `log:` section of the configuration file.
type LoggerConfig struct {
	Level     string           `mapstructure:"level" yaml:"level"`
	Pattern   string           `mapstructure:"pattern" yaml:"pattern"`
	Time      string           `mapstructure:"time" yaml:"time"`
	Appenders []AppenderConfig `mapstructure:"appenders" yaml:"appenders"`
}

// AppenderConfig selects an output. Options are decoded per appender type.
type AppenderConfig struct {
	Type    string                 `mapstructure:"type" yaml:"type"`
	Options map[string]interface{} `mapstructure:"options" yaml:"options,omitempty"`
}

const (
	AppenderConsole = "console"
	AppenderFile    = "file"

	DefaultPattern = "%time [%level] %field %msg%n"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

// DefaultConfig logs at info level to stderr.
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:     "info",
		Pattern:   DefaultPattern,
		Time:      DefaultTime,
		Appenders: []AppenderConfig{{Type: AppenderConsole}},
	}
}

// Validate checks the level and appender options without opening outputs.
func (c *LoggerConfig) Validate() error {
	if c.Level != "" {
		if _, err := logrus.ParseLevel(c.Level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
	}
	for _, a := range c.Appenders {
		switch a.Type {
		case AppenderConsole, "":
		case AppenderFile:
			if _, err := decodeFileAppenderOpt(a.Options); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown appender type %q", a.Type)
		}
	}
	return nil
}
