//go:build !windows

package startup

import (
	"fmt"
	"os"
	"path/filepath"
)

func desktopEntryPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "autostart", "lumitray.desktop")
}

func setEnabled(enabled bool) bool {
	path := desktopEntryPath()
	if !enabled {
		err := os.Remove(path)
		return err == nil || os.IsNotExist(err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false
	}
	entry := fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Exec=%s
X-GNOME-Autostart-enabled=true
`, appName, executablePath())
	return os.WriteFile(path, []byte(entry), 0o644) == nil
}

func isEnabled() bool {
	_, err := os.Stat(desktopEntryPath())
	return err == nil
}
