// Package crashlog implements the daemon's crash-diagnostics path: a
// panic in the audio capture callback is recovered, formatted into a
// crash report, and appended to a log file on disk instead of silently
// taking the process down. Grounded on the reference implementation's
// panic handler, which installs a global panic hook that does the same
// before the process aborts; Go can't install an equivalent
// process-wide hook (a panic on a goroutine other than the one that
// recovers it is unrecoverable), so this package is called from a
// local recover() at the capture callback instead.
package crashlog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"
)

// Path returns the crash report file location, creating its parent
// directory if it doesn't already exist.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("crashlog: resolve home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "voxd")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("crashlog: create %q: %w", dir, err)
	}
	return filepath.Join(dir, "crash.log"), nil
}

// Report formats a crash report for a value recovered from panic and
// appends it to the crash log, also printing it to stderr. It never
// itself panics: a recover() site has no good way to handle a second
// failure while reporting the first.
func Report(component string, recovered any) {
	report := format(component, recovered)
	fmt.Fprintln(os.Stderr, report)

	path, err := Path()
	if err != nil {
		log.Printf("crashlog: %v", err)
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("crashlog: open %q: %v", path, err)
		return
	}
	defer f.Close()

	fmt.Fprint(f, "\n\n========================================\n\n")
	fmt.Fprint(f, report)
	log.Printf("crashlog: crash report appended to %s", path)
}

func format(component string, recovered any) string {
	return fmt.Sprintf(`
================================================================================
VOXD CRASH REPORT
================================================================================
Time:      %s
Component: %s
Message:   %v

Stack:
%s
================================================================================
`, time.Now().Format("2006-01-02 15:04:05.000"), component, recovered, debug.Stack())
}
