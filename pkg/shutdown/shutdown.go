// Package shutdown handles process exit: signal-driven graceful stops and
// fatal startup aborts that leave a crash dump behind.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"transrelay/pkg/logger"
	"transrelay/pkg/state"
)

// Abort logs a fatal startup error, writes a crash dump and exits with
// status 2 after delaySeconds (default 3).
func Abort(contextMsg string, err error, dataDir string, delaySeconds ...int) {
	delay := 3
	if len(delaySeconds) > 0 && delaySeconds[0] >= 0 {
		delay = delaySeconds[0]
	}
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	if dumpPath, derr := WriteCrashDump(CrashDir(dataDir), contextMsg, err); derr != nil {
		logger.Error("crash_dump_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Error("startup_fatal_crashdump", "path", dumpPath)
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", dumpPath)
	}
	if delay > 0 {
		logger.Info("exiting_in_seconds", "seconds", delay)
		time.Sleep(time.Duration(delay) * time.Second)
	}
	os.Exit(2)
}

// CrashDir prefers TRANSRELAY_ARTIFACT_ROOT/crash, then the data dir layout,
// then ./crash.
func CrashDir(dataDir string) string {
	if p := state.ArtifactPath("crash"); p != "" {
		return p
	}
	if dataDir != "" {
		return state.LayoutFor(dataDir).Crash
	}
	return "./crash"
}

// WriteCrashDump writes reason, error, environment and all goroutine stacks
// into a new file under dir and returns its path. The file appears
// atomically.
func WriteCrashDump(dir, reason string, cause error) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create crash dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".crash-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp crash file: %w", err)
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	fmt.Fprintf(f, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "pid: %d\n", os.Getpid())
	fmt.Fprintf(f, "reason: %s\n", reason)
	fmt.Fprintf(f, "error: %v\n", cause)
	fmt.Fprintf(f, "\n--- environ ---\n")
	for _, e := range os.Environ() {
		fmt.Fprintln(f, redactEnv(e))
	}
	fmt.Fprintf(f, "\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	_, _ = f.Write(buf[:n])
	_ = f.Sync()
	if err := f.Close(); err != nil {
		return "", err
	}

	dumpPath := fmt.Sprintf("%s/crash-%d.log", dir, time.Now().UnixNano())
	if err := os.Rename(tmpName, dumpPath); err != nil {
		return "", fmt.Errorf("failed to move crash dump into place: %w", err)
	}
	_ = os.Chmod(dumpPath, 0o600)
	return dumpPath, nil
}

// secrets never reach the dump
var redacted = []string{"TRANSRELAY_TELEGRAM_TOKEN", "TRANSRELAY_WEBHOOK_SECRET", "TRANSRELAY_OCR_API_KEY"}

func redactEnv(kv string) string {
	for _, k := range redacted {
		if len(kv) > len(k) && kv[:len(k)+1] == k+"=" {
			return k + "=***"
		}
	}
	return kv
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM. A
// SIGPIPE logs every goroutine stack before cancelling.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigc:
			logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigc)
	}()

	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		select {
		case s := <-sigpipe:
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE - dumping goroutine stacks")
			logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigpipe)
	}()

	return ctx, cancel
}
