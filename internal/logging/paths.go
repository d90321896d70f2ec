package logging

import (
	"os"
	"path/filepath"
)

// appDirName is the per-user data directory for aiturag.
const appDirName = ".aiturag"

// DataDir returns the aiturag data directory (~/.aiturag), falling back to
// the current directory when the home directory cannot be resolved.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return appDirName
	}
	return filepath.Join(home, appDirName)
}

// LogDir returns the directory for log files.
func LogDir() string {
	return filepath.Join(DataDir(), "logs")
}

// DefaultLogPath returns the default path for the main log file.
func DefaultLogPath() string {
	return filepath.Join(LogDir(), "aiturag.log")
}
