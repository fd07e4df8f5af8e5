// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logger provides the agent's single structured logger. Every
// error path in the transfer engine logs through here rather than
// fmt.Println (spec.md §7); construction is lazy and safe to call from
// any goroutine.
package logger

import (
	"log"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	LogContainer     logContainer
	loggerInit       sync.Once
	simpleLoggerInit sync.Once

	// LogPath is the file the JSON core writes to. A package var, not a
	// const, so tests can redirect it before the first Get call.
	LogPath = "/tmp/pldm-fileio.log"
)

type logContainer struct {
	logger       *zap.Logger
	simpleLogger *zap.SugaredLogger
}

// GetLogger returns the pointer to the logger and creates one if none exists.
func (l *logContainer) GetLogger() *zap.Logger {
	loggerInit.Do(func() {
		l.logger = zap.New(getCombinedCore())
	})
	return l.logger
}

// GetSimpleLogger returns the pointer to the sugared logger and creates one
// if none exists.
func (l *logContainer) GetSimpleLogger() *zap.SugaredLogger {
	simpleLoggerInit.Do(func() {
		logger := zap.New(getCombinedCore())
		l.simpleLogger = logger.Sugar()
	})
	return l.simpleLogger
}

// String mirrors zap.String.
func (l *logContainer) String(key string, val string) zap.Field {
	return zap.String(key, val)
}

// Int mirrors zap.Int.
func (l *logContainer) Int(key string, val int) zap.Field {
	return zap.Int(key, val)
}

// Uint8 mirrors zap.Uint8, used for instance ids.
func (l *logContainer) Uint8(key string, val uint8) zap.Field {
	return zap.Uint8(key, val)
}

// Uint32 mirrors zap.Uint32, used for transfer cursors.
func (l *logContainer) Uint32(key string, val uint32) zap.Field {
	return zap.Uint32(key, val)
}

// Err mirrors zap.Error.
func (l *logContainer) Err(err error) zap.Field {
	return zap.Error(err)
}

func getConsoleEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func getJSONEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.EpochTimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

func getLogWriter() zapcore.WriteSyncer {
	f, err := os.Create(LogPath)
	if err != nil {
		log.Fatalf("unable to create logfile: %v", err)
	}
	return zapcore.AddSync(f)
}

func getConsoleCore() zapcore.Core {
	return zapcore.NewCore(getConsoleEncoder(), zapcore.AddSync(os.Stdout), zapcore.InfoLevel)
}

func getJSONCore() zapcore.Core {
	return zapcore.NewCore(getJSONEncoder(), getLogWriter(), zapcore.InfoLevel)
}

func getCombinedCore() zapcore.Core {
	return zapcore.NewTee(getConsoleCore(), getJSONCore())
}
