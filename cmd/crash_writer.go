package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/ninecatalog/classicbridge/cfg"
)

type CrashWriter struct {
	fileName string
}

func (w *CrashWriter) Write(p []byte) (n int, err error) {
	f, err := os.OpenFile(w.fileName, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return
	}
  defer f.Close()

	n, err = f.Write(p)

	return
}

// crashLogPath places the crash dump alongside this volume's other
// on-disk state (catalog spill, resource-fork cache), so a fatal panic
// leaves a record next to the data it was operating on.
func crashLogPath(c *cfg.Config) string {
	dir, err := cfg.ResolveConfigDir(c)
	if err != nil {
		return filepath.Join(os.TempDir(), "fsbridge-crash.log")
	}
	return filepath.Join(dir, "crash.log")
}

// recoverCrash is deferred around the serve command's execution. A
// panic reaching here is a protocol-level impossibility (spec.md §7
// category 2: an rx format mismatch, a malformed walk, a corrupt
// catalog spill file) with no local recovery; it is recorded to the
// crash log before the process exits non-zero, the same "write it down
// before dying" role the teacher's CrashWriter served.
func recoverCrash(c *cfg.Config) {
	if r := recover(); r != nil {
		w := &CrashWriter{fileName: crashLogPath(c)}
		fmt.Fprintf(w, "fsbridge: panic: %v\n%s\n", r, debug.Stack())
		os.Exit(2)
	}
}
