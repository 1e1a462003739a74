package model

import "strings"

// Theme names accepted in the persisted store. Rendering lives outside the
// core; only the normalized name is carried here.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemeGray  = "gray"
	ThemeSand  = "sand"
)

// NormalizeTheme maps arbitrary persisted text to a known theme name,
// falling back to dark
func NormalizeTheme(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ThemeLight:
		return ThemeLight
	case ThemeGray:
		return ThemeGray
	case ThemeSand:
		return ThemeSand
	default:
		return ThemeDark
	}
}
