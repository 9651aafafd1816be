package display

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "swap-deposit.log"

type LogOption struct {
	Format   string // console / json
	LogDir   string // 为空时只输出到 stderr
	Level    string // debug / info / warn / error
	Compress bool
}

var (
	loggerMu sync.RWMutex
	logger   = zap.NewNop()
	// 控制台彩色输出只有在写日志文件时才同步一份到 zap
	fileLogger = zap.NewNop()
)

// InitLogger 按配置初始化全局 logger
func InitLogger(opt LogOption) error {
	level := zapcore.InfoLevel
	if opt.Level != "" {
		l, err := zapcore.ParseLevel(opt.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opt.Level, err)
		}
		level = l
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(opt.Format) {
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return fmt.Errorf("invalid log format %q", opt.Format)
	}

	stderrCore := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)

	loggerMu.Lock()
	defer loggerMu.Unlock()

	if opt.LogDir == "" {
		logger = zap.New(stderrCore)
		fileLogger = zap.NewNop()
		return nil
	}

	if err := os.MkdirAll(opt.LogDir, 0o755); err != nil {
		return err
	}
	fileCore := zapcore.NewCore(encoder.Clone(), zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(opt.LogDir, logFileName),
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     7, // days
		Compress:   opt.Compress,
	}), level)

	logger = zap.New(zapcore.NewTee(stderrCore, fileCore))
	fileLogger = zap.New(fileCore)
	return nil
}

// Logger 返回全局结构化 logger，未初始化时为 Nop
func Logger() *zap.SugaredLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger.Sugar()
}

func mirror() *zap.SugaredLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return fileLogger.Sugar()
}

func Sync() {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	_ = logger.Sync()
	_ = fileLogger.Sync()
}
