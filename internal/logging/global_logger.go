// Package logging configures the shared logrus logger, its optional rotating file
// output, and the Gin middleware used by the local OAuth callback listener.
package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/claude-oauth/internal/config"
	"github.com/router-for-me/claude-oauth/internal/util"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logFileMaxSizeMB is the size at which lumberjack rotates the main log file.
const logFileMaxSizeMB = 10

// logFileName is the active log file inside the log directory.
const logFileName = "claude-oauth.log"

var (
	setupOnce      sync.Once
	writerMu       sync.Mutex
	logWriter      *lumberjack.Logger
	ginInfoWriter  *io.PipeWriter
	ginErrorWriter *io.PipeWriter
)

// LogFormatter defines a custom log format for logrus.
// Format: [2025-12-23 20:14:04] [a1b2c3d4] [debug] [client.go:88] exchanging authorization code mode=console
type LogFormatter struct{}

// logFieldOrder defines the display order of the fields that are printed.
var logFieldOrder = []string{"flow_id", "mode", "op", "status", "error"}

// Format renders a single log entry with custom formatting.
func (m *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	var buffer *bytes.Buffer
	if entry.Buffer != nil {
		buffer = entry.Buffer
	} else {
		buffer = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	message := strings.TrimRight(entry.Message, "\r\n")

	reqID := "--------"
	if id, ok := entry.Data["request_id"].(string); ok && id != "" {
		reqID = id
	}

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	levelStr := fmt.Sprintf("%-5s", level)

	var fieldsStr string
	if len(entry.Data) > 0 {
		var fields []string
		for _, k := range logFieldOrder {
			if v, ok := entry.Data[k]; ok {
				fields = append(fields, fmt.Sprintf("%s=%v", k, v))
			}
		}
		if len(fields) > 0 {
			fieldsStr = " " + strings.Join(fields, " ")
		}
	}

	var formatted string
	if entry.Caller != nil {
		formatted = fmt.Sprintf("[%s] [%s] [%s] [%s:%d] %s%s\n", timestamp, reqID, levelStr, filepath.Base(entry.Caller.File), entry.Caller.Line, message, fieldsStr)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] [%s] %s%s\n", timestamp, reqID, levelStr, message, fieldsStr)
	}
	buffer.WriteString(formatted)

	return buffer.Bytes(), nil
}

// SetupBaseLogger configures the shared logrus instance and Gin writers.
// It is safe to call multiple times; initialization happens only once.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(&LogFormatter{})

		ginInfoWriter = log.StandardLogger().Writer()
		gin.DefaultWriter = ginInfoWriter
		ginErrorWriter = log.StandardLogger().WriterLevel(log.ErrorLevel)
		gin.DefaultErrorWriter = ginErrorWriter
		gin.DebugPrintFunc = func(format string, values ...interface{}) {
			format = strings.TrimRight(format, "\r\n")
			log.StandardLogger().Debugf(format, values...)
		}

		log.RegisterExitHandler(closeLogOutputs)
	})
}

// FromContext returns a log entry tagged with the request ID carried by ctx.
func FromContext(ctx context.Context) *log.Entry {
	return log.WithField("request_id", GetRequestID(ctx))
}

// ResolveLogDirectory determines the directory used for logs: WRITABLE_PATH/logs when set,
// otherwise <auth-dir>/logs, otherwise ./logs.
func ResolveLogDirectory(cfg *config.Config) string {
	if base := util.WritablePath(); base != "" {
		return filepath.Join(base, "logs")
	}
	if cfg == nil {
		return "logs"
	}
	authDir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		log.Warnf("Failed to resolve auth-dir %q for log directory: %v", cfg.AuthDir, err)
	}
	if authDir != "" {
		return filepath.Join(authDir, "logs")
	}
	return "logs"
}

// ConfigureLogOutput switches the global log destination between a rotating file and stdout.
// LogsMaxTotalSizeMB bounds the rotated backups kept next to the active file; <= 0 keeps all.
func ConfigureLogOutput(cfg *config.Config) error {
	SetupBaseLogger()

	writerMu.Lock()
	defer writerMu.Unlock()

	if cfg == nil || !cfg.LoggingToFile {
		if logWriter != nil {
			_ = logWriter.Close()
			logWriter = nil
		}
		log.SetOutput(os.Stdout)
		return nil
	}

	logDir := ResolveLogDirectory(cfg)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("logging: failed to create log directory: %w", err)
	}
	if logWriter != nil {
		_ = logWriter.Close()
	}
	logWriter = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, logFileName),
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: maxBackups(cfg.LogsMaxTotalSizeMB),
		Compress:   false,
	}
	log.SetOutput(logWriter)
	return nil
}

// maxBackups converts a total size budget into a backup count; the active file uses one slot.
func maxBackups(totalSizeMB int) int {
	if totalSizeMB <= 0 {
		return 0
	}
	n := totalSizeMB/logFileMaxSizeMB - 1
	if n < 1 {
		n = 1
	}
	return n
}

func closeLogOutputs() {
	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	if ginInfoWriter != nil {
		_ = ginInfoWriter.Close()
		ginInfoWriter = nil
	}
	if ginErrorWriter != nil {
		_ = ginErrorWriter.Close()
		ginErrorWriter = nil
	}
}
