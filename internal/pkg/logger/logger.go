package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOption 日志初始化参数
type LogOption struct {
	Format   string // console / json
	LogDir   string // 为空时只输出到 stdout
	Level    string // debug / info / warn / error
	Compress bool   // 是否压缩旧日志文件
}

const (
	defaultLogFile    = "settle.log"
	defaultMaxSizeMB  = 200
	defaultMaxBackups = 20
	defaultMaxAgeDays = 7
)

var (
	mu    sync.RWMutex
	sugar = zap.NewNop().Sugar()
	base  = zap.NewNop()
)

// InitLogger 按配置初始化全局 logger，可重复调用（后一次覆盖前一次）
func InitLogger(opt LogOption) error {
	level := zapcore.InfoLevel
	if opt.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opt.Level))); err != nil {
			return err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if opt.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}
	if opt.LogDir != "" {
		if err := os.MkdirAll(opt.LogDir, 0o755); err != nil {
			return err
		}
		// 文件按大小滚动
		writer := &lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, defaultLogFile),
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			Compress:   opt.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(writer), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	base = l
	sugar = l.Sugar()
	mu.Unlock()
	return nil
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// L 返回底层 zap.Logger，用于需要结构化字段的场景
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Debugf(template string, args ...interface{}) {
	current().Debugf(template, args...)
}

func Infof(template string, args ...interface{}) {
	current().Infof(template, args...)
}

func Warnf(template string, args ...interface{}) {
	current().Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	current().Errorf(template, args...)
}

// Sync 刷新缓冲区，进程退出前调用
func Sync() {
	_ = current().Sync()
}
