// Package startup registers the application to launch at login. All
// operations are best-effort: failures are reported, never fatal.
package startup

import "os"

const appName = "Lumitray"

// executablePath resolves the running binary for the startup command
func executablePath() string {
	path, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return path
}

// SetEnabled registers or unregisters login startup, reporting success
func SetEnabled(enabled bool) bool {
	return setEnabled(enabled)
}

// IsEnabled reports whether a startup registration currently exists
func IsEnabled() bool {
	return isEnabled()
}
