// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"io/ioutil"
	"os"

	log "github.com/sirupsen/logrus"
)

// NewLogger builds the engine logger from cfg. Unknown levels fall back
// to info, unknown formats to text.
func NewLogger(cfg LogConfiguration) *log.Logger {
	logger := log.New()
	logger.Out = os.Stderr

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.Formatter = &log.JSONFormatter{}
	default:
		logger.Formatter = &log.TextFormatter{FullTimestamp: true}
	}
	return logger
}

// DiscardLogger returns a logger that drops everything. Components
// given a nil logger use it.
func DiscardLogger() *log.Logger {
	logger := log.New()
	logger.Out = ioutil.Discard
	logger.SetLevel(log.PanicLevel)
	return logger
}

// OrDiscard returns l, or a discarding logger when l is nil or holds
// a nil *logrus.Logger or *logrus.Entry.
func OrDiscard(l log.FieldLogger) log.FieldLogger {
	switch v := l.(type) {
	case nil:
		return DiscardLogger()
	case *log.Logger:
		if v == nil {
			return DiscardLogger()
		}
	case *log.Entry:
		if v == nil {
			return DiscardLogger()
		}
	}
	return l
}
