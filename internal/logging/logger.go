package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	cfgpkg "github.com/taoyao-code/flexispot-bridge/internal/config"
)

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.Format(time.RFC3339Nano)) },
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// InitLogger 初始化 zap 日志器：标准输出 + 可选 lumberjack 滚动文件（filename 为空则只写标准输出）
func InitLogger(cfg cfgpkg.LoggingConfig) (*zap.Logger, error) {
	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if cfg.File.Filename != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}))
	}
	return New(cfg, zapcore.NewMultiWriteSyncer(syncers...)), nil
}

// New 按配置构建写入 w 的日志器，json 为默认格式
func New(cfg cfgpkg.LoggingConfig, w io.Writer) *zap.Logger {
	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), ParseLevel(cfg.Level))
	return zap.New(core, zap.AddCaller())
}

// Component 为子模块派生带 component 字段的日志器
func Component(log *zap.Logger, name string) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return log.With(zap.String("component", name))
}
