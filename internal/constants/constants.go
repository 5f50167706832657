// Package constants is responsible for defining the constants used in the application.
// It also provides utility functions to get the default configuration and data paths.
package constants

import (
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "tendersync"

	// DefaultAppFolder is the name of the default root folder.
	DefaultAppFolder = "tendersync"

	// WebAPIVersion is the Dataverse Web API version the connector speaks.
	WebAPIVersion = "v9.2"

	// DefaultScopeSuffix is appended to the organization URL to form the OAuth2 scope.
	DefaultScopeSuffix = "/.default"

	// CursorsFolder is the name of the per-tenant cursor directory.
	CursorsFolder = "cursors"

	// RegistryFolder is the name of the per-tenant table registry directory.
	RegistryFolder = "registry"

	// RowsFolder is the name of the per-tenant raw row log directory.
	RowsFolder = "rows"

	// SubmissionsFolder is the name of the local submission delivery directory.
	SubmissionsFolder = "submissions"

	// CursorFileExt is the extension of cursor watermark files.
	CursorFileExt = ".toml"

	// RegistryFileExt is the extension of table registry documents.
	RegistryFileExt = ".yaml"

	// RowFileExt is the extension of raw row log files.
	RowFileExt = ".jsonl"

	// DefaultPageSize is the default odata.maxpagesize preference.
	DefaultPageSize = 200

	// DefaultMaxPages is the default page bound for a single poll run.
	DefaultMaxPages = 2

	// DefaultLogLevel is the default log level of the application.
	DefaultLogLevel = slog.LevelWarn
)

var (
	// Version is the version of the application.
	Version = "Dev"

	// DefaultDataPath is the default application data path. It's overridden at startup.
	DefaultDataPath = DefaultAppFolder
)

func init() {
	if dataDir, err := os.UserCacheDir(); err == nil {
		DefaultDataPath = filepath.Join(dataDir, DefaultAppFolder)
	}
}
