package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process logger used by middleware. It is a no-op until
// InitLogger runs.
var Logger = zap.NewNop()

// InitLogger writes JSON to a rotating file. Outside production the same
// entries also go to stdout in console form, at debug level.
func InitLogger(env, file string) *zap.Logger {
	if file == "" {
		file = "./logs/app.log"
	}
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    50, // MB
		MaxBackups: 7,
		MaxAge:     14, // days
		Compress:   true,
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	production := env == "production" || env == "prod"
	level := zap.DebugLevel
	if production {
		level = zap.InfoLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writer, level),
	}
	if !production {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), level))
	}

	Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller()).
		With(zap.String("service", "vivify-api"), zap.String("env", env))
	return Logger
}
