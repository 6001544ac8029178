package core

import (
	"os"
	"path/filepath"
	"strings"
)

// Supported content languages.
const (
	LangArabic  = "ar"
	LangEnglish = "en"
)

var Languages = []string{LangArabic, LangEnglish}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanLang returns `lang` if it is a supported language, `fallback` otherwise.
func CleanLang(lang, fallback string) string {
	lang = CleanString(lang, true /* lower */)
	for _, l := range Languages {
		if l == lang {
			return l
		}
	}
	return fallback
}

// Getwd tries to find the project root: the closest parent directory holding a go.mod file.
// go-test changes the working directory to the test package being run during tests, which breaks relative paths.
// Falls back to the current working directory (e.g. for a deployed binary).
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
