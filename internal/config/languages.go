package config

import (
	"path/filepath"
	"strings"
)

// Language tags used across the pipeline. A tag must map to a collection.
const (
	LangRust          = "rust"
	LangTypeScript    = "typescript"
	LangJavaScript    = "javascript"
	LangSolidity      = "solidity"
	LangDocumentation = "documentation"
	LangYAML          = "yaml"
	LangTerraform     = "terraform"
)

// SupportedLanguages returns the language tags in processing order.
// The order is load-bearing: file groups are emitted in this order so that
// checkpoints identify a unique position in the run.
func SupportedLanguages() []string {
	return []string{
		LangRust,
		LangTypeScript,
		LangJavaScript,
		LangSolidity,
		LangDocumentation,
		LangYAML,
		LangTerraform,
	}
}

// extensionLanguages maps file extensions to language tags.
var extensionLanguages = map[string]string{
	".rs":   LangRust,
	".ts":   LangTypeScript,
	".tsx":  LangTypeScript,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".sol":  LangSolidity,
	".md":   LangDocumentation,
	".yaml": LangYAML,
	".yml":  LangYAML,
	".tf":   LangTerraform,
}

// cicdPathMarkers identify CI/CD definition files, which are ingested as
// YAML configuration regardless of extension.
var cicdPathMarkers = []string{
	".github/workflows",
	".gitlab-ci",
	".circleci",
	"jenkinsfile",
}

// LanguageForPath returns the language tag for a repo-relative path and
// whether the file is ingestable at all.
func LanguageForPath(relPath string) (string, bool) {
	if IsCICDPath(relPath) {
		return LangYAML, true
	}
	ext := strings.ToLower(filepath.Ext(relPath))
	lang, ok := extensionLanguages[ext]
	return lang, ok
}

// IsCICDPath reports whether the path identifies a CI/CD definition file.
func IsCICDPath(relPath string) bool {
	lower := strings.ToLower(filepath.ToSlash(relPath))
	for _, marker := range cicdPathMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
