package core

import (
	"os"
	"path/filepath"
)

// Paths locates the per-user state directory. Everything lusush persists
// lives under ~/.local/share/lusush.
type Paths struct {
	HomeDir     string
	DataDir     string
	LogFile     string
	HistoryFile string
	ArchiveFile string
}

var defaultPaths *Paths

func ensureDefaultPaths() {
	if defaultPaths == nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}

		dataDir := filepath.Join(homeDir, ".local", "share", "lusush")
		defaultPaths = &Paths{
			HomeDir:     homeDir,
			DataDir:     dataDir,
			LogFile:     filepath.Join(dataDir, "lusush.log"),
			HistoryFile: filepath.Join(dataDir, "history"),
			ArchiveFile: filepath.Join(dataDir, "history.db"),
		}

		err = os.MkdirAll(dataDir, 0755)
		if err != nil {
			panic(err)
		}
	}
}

func HomeDir() string {
	ensureDefaultPaths()
	return defaultPaths.HomeDir
}

func DataDir() string {
	ensureDefaultPaths()
	return defaultPaths.DataDir
}

func LogFile() string {
	ensureDefaultPaths()
	return defaultPaths.LogFile
}

func HistoryFile() string {
	ensureDefaultPaths()
	return defaultPaths.HistoryFile
}

func ArchiveFile() string {
	ensureDefaultPaths()
	return defaultPaths.ArchiveFile
}
