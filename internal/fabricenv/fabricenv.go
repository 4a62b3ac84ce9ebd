// Package fabricenv reads the default model settings of the local Fabric
// installation from its .env file (~/.config/fabric/.env).
//
// Loading never fails: a missing or unreadable file, or malformed lines,
// degrade to absent values and are only logged.
package fabricenv

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"fabricmcp/internal/logging"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const (
	KeyDefaultModel  = "DEFAULT_MODEL"
	KeyDefaultVendor = "DEFAULT_VENDOR"
)

// DefaultPath returns the path of Fabric's environment file.
func DefaultPath() string {
	return filepath.Join(xdg.Home, ".config", "fabric", ".env")
}

// Loader reads a Fabric .env file. The file is re-read on every call so
// edits made while the server runs are picked up.
type Loader struct {
	path   string
	logger *logging.AppLogger
}

// NewLoader creates a Loader for path; an empty path selects DefaultPath.
func NewLoader(path string, logger *logging.AppLogger) *Loader {
	if path == "" {
		path = DefaultPath()
	}
	if logger == nil {
		logger = logging.GetDefault()
	}
	return &Loader{path: path, logger: logger}
}

// Path returns the file this loader reads.
func (l *Loader) Path() string {
	return l.path
}

// Load returns the variables defined in the file. It returns an empty map
// when the file is missing or cannot be read.
func (l *Loader) Load() map[string]string {
	vars, err := godotenv.Read(l.path)
	if err == nil {
		return vars
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.logger.Info("Fabric environment file not found", "path", l.path)
		return map[string]string{}
	case errors.Is(err, fs.ErrPermission):
		l.logger.Info("Permission denied accessing Fabric environment file", "path", l.path)
		return map[string]string{}
	}

	// The parser rejects the whole file on the first bad line; fall back to
	// parsing line by line so the valid entries survive.
	l.logger.Warn("Fabric environment file has issues, parsing line by line", "path", l.path, "error", err)
	return l.loadLenient()
}

func (l *Loader) loadLenient() map[string]string {
	vars := map[string]string{}

	f, err := os.Open(l.path)
	if err != nil {
		l.logger.Warn("Error reading Fabric environment file", "path", l.path, "error", err)
		return vars
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parsed, err := godotenv.Unmarshal(line)
		if err != nil || len(parsed) == 0 {
			l.logger.Warn("Malformed line in Fabric environment file", "path", l.path, "line", lineNum)
			continue
		}
		for k, v := range parsed {
			vars[k] = v
		}
	}
	if err := scanner.Err(); err != nil {
		l.logger.Warn("Error reading Fabric environment file", "path", l.path, "error", err)
	}
	return vars
}

// Defaults returns DEFAULT_MODEL and DEFAULT_VENDOR; empty strings mean the
// value is not configured.
func (l *Loader) Defaults() (model, vendor string) {
	vars := l.Load()

	model = strings.TrimSpace(vars[KeyDefaultModel])
	vendor = strings.TrimSpace(vars[KeyDefaultVendor])

	if model == "" {
		l.logger.Warn("DEFAULT_MODEL not found in Fabric environment configuration", "path", l.path)
	}
	if vendor == "" {
		l.logger.Warn("DEFAULT_VENDOR not found in Fabric environment configuration", "path", l.path)
	}
	return model, vendor
}
