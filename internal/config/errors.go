package config

import "errors"

// Validation errors returned by Config.Validate. Callers match them with
// errors.Is.
var (
	// ErrNoCredentials means neither a static token nor email and password are set.
	ErrNoCredentials = errors.New("missing credentials: set TOKEN or EMAIL and PASSWORD")

	// ErrNoBaseURL means sign-in is needed but MLX_BASE is empty.
	ErrNoBaseURL = errors.New("missing MLX_BASE: required to sign in without TOKEN")

	// ErrNoLauncher means MLX_LAUNCHER is empty.
	ErrNoLauncher = errors.New("missing MLX_LAUNCHER")

	// ErrBrowserType is returned for a BROWSER_TYPE other than mimic or stealthfox.
	ErrBrowserType = errors.New("invalid BROWSER_TYPE: must be mimic or stealthfox")

	// ErrBackend is returned for an unknown OUTPUT.BACKEND.
	ErrBackend = errors.New("invalid OUTPUT.BACKEND: must be csv, ndjson, sqlite or postgres")

	// ErrNoDSN means the postgres backend was chosen without OUTPUT.DSN.
	ErrNoDSN = errors.New("missing OUTPUT.DSN for the postgres backend")

	// ErrInvalidAttempts is returned when an attempt limit is not positive.
	ErrInvalidAttempts = errors.New("invalid attempts: must be positive")

	// ErrInvalidDelay is returned for a negative step delay.
	ErrInvalidDelay = errors.New("invalid SEARCH.STEP_DELAY: must be non-negative")

	// ErrConfigNotFound is returned when an explicitly named config file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
