package config

import "path/filepath"

// All self-managed directories live under home (~/.chatd or CHATD_HOME) so an
// install can be moved or backed up as one tree.

// Home returns the chatd root directory (ResolveHome()).
func Home() string {
	return ResolveHome()
}

// DataDir returns the default data directory, home/data. The configured
// server.dataDir overrides it.
func DataDir() string {
	return filepath.Join(Home(), "data")
}

// DocumentsDir returns where uploaded files are written under dataDir.
func DocumentsDir(dataDir string) string {
	return filepath.Join(dataDir, "documents")
}

// LogsDir returns the log directory, home/logs.
func LogsDir() string {
	return filepath.Join(Home(), "logs")
}
