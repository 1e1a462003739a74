//go:build windows

package startup

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const runKeyPath = `Software\Microsoft\Windows\CurrentVersion\Run`

func setEnabled(enabled bool) bool {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		return false
	}
	defer key.Close()

	if enabled {
		command := fmt.Sprintf("%q", executablePath())
		return key.SetStringValue(appName, command) == nil
	}

	err = key.DeleteValue(appName)
	if err == registry.ErrNotExist {
		return true
	}
	return err == nil
}

func isEnabled() bool {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	defer key.Close()

	_, _, err = key.GetStringValue(appName)
	return err == nil
}
