package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".chatpool"

// Paths holds resolved filesystem paths for chatpool data.
type Paths struct {
	Base   string // ~/.chatpool
	Config string // ~/.chatpool/config.yaml
	Store  string // ~/.chatpool/accounts.db
	Logs   string // ~/.chatpool/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If CHATPOOL_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("CHATPOOL_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Store:  filepath.Join(base, "accounts.db"),
		Logs:   filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates the standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
