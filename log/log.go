package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	callFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: FRONTDESK_LOG_PATH environment variable
	envPath := os.Getenv("FRONTDESK_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	callPath := filepath.Join(dir, "call_log.txt")
	callFile, err = os.OpenFile(callPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if callFile != nil {
		callFile.Close()
		callFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// CallStart records the opening of a voice session.
func CallStart(service, model, voice string, grounding bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("service", service).
		Str("model", model).
		Str("voice", voice).
		Bool("grounding", grounding).
		Msg("call_start")
}

// CallEnd records the close of a voice session with its teardown reason.
func CallEnd(reason string, dur time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("reason", reason).
		Float64("duration_s", dur.Seconds()).
		Msg("call_end")
}

type StreamMetricsData struct {
	ConnectMs     float64
	TotalMs       float64
	SentFrames    int
	SentKB        float64
	DroppedFrames int
	RecvChunks    int
	RecvKB        float64
	Turns         int
	Citations     int
	DecodeErrors  int
}

func StreamMetrics(m StreamMetricsData) {
	if !logReady {
		return
	}
	diagLog.Info().
		Float64("connect_ms", m.ConnectMs).
		Float64("total_ms", m.TotalMs).
		Int("sent_frames", m.SentFrames).
		Float64("sent_kb", m.SentKB).
		Int("dropped_frames", m.DroppedFrames).
		Int("recv_chunks", m.RecvChunks).
		Float64("recv_kb", m.RecvKB).
		Int("turns", m.Turns).
		Int("citations", m.Citations).
		Int("decode_errors", m.DecodeErrors).
		Msg("call_stream")
}

// Transcript appends one text-exchange line to the call log file.
func Transcript(role, text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, role, text)
	callFile.WriteString(line)
}

func SessionStart(service, model string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("service", service).
		Str("model", model).
		Msg("session_start")
}

func SessionEnd(calls int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("calls", calls).
		Msg("session_end")
}
