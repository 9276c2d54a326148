package log

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/natefinch/lumberjack.v2"
)

type FileAppenderOpt struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

func decodeFileAppenderOpt(options map[string]interface{}) (FileAppenderOpt, error) {
	var opt FileAppenderOpt
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opt,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return opt, err
	}
	if err := decoder.Decode(options); err != nil {
		return opt, fmt.Errorf("file appender options: %w", err)
	}
	if opt.Filename == "" {
		return opt, fmt.Errorf("file appender requires 'filename'")
	}
	return opt, nil
}

func (m *MultiWriter) AddFileAppender(options FileAppenderOpt) *MultiWriter {
	writer := &lumberjack.Logger{
		Filename:   options.Filename,
		MaxSize:    options.MaxSize,    // megabytes
		MaxBackups: options.MaxBackups, // number of backups
		MaxAge:     options.MaxAge,     // days
		Compress:   options.Compress,   // compress the backups
	}
	m.writers = append(m.writers, writer)
	return m
}
