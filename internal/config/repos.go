package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	ingerr "github.com/Aman-CERP/codevec/internal/errors"
)

// Repo describes one repository to ingest. Immutable for the duration of a
// run; only GithubURL is strictly required in the config file.
type Repo struct {
	// ID is the stable repository identity. Defaults to the URL basename.
	ID string `yaml:"id"`

	// GithubURL is the canonical remote. The tree itself must already be
	// on disk under ReposBaseDir; cloning is out of scope.
	GithubURL string `yaml:"github_url"`

	// RepoType is one of frontend, backend, middleware, infrastructure,
	// tool, documentation.
	RepoType string `yaml:"repo_type"`

	// Languages restricts ingestion to these tags. Empty means all.
	Languages []string `yaml:"languages"`

	// Components are subdirectories of interest. Empty means the whole tree.
	Components []string `yaml:"components"`

	// Priority is high, medium, or low.
	Priority string `yaml:"priority"`

	// ServiceDependencies are repo ids this service depends on.
	ServiceDependencies []string `yaml:"service_dependencies"`

	HasHelm     bool   `yaml:"has_helm"`
	HelmPath    string `yaml:"helm_path"`
	ExposesAPIs bool   `yaml:"exposes_apis"`
	APIBasePath string `yaml:"api_base_path"`
}

// Path returns the on-disk location of the repository tree.
func (r *Repo) Path(baseDir string) string {
	return filepath.Join(baseDir, r.ID)
}

// WantsLanguage reports whether the repo declares the language, or declares
// none (meaning all languages).
func (r *Repo) WantsLanguage(lang string) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, l := range r.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// reposFile is the top-level shape of the repository config YAML.
type reposFile struct {
	ReposBaseDir string `yaml:"repos_base_dir"`
	Repositories []Repo `yaml:"repositories"`
}

// LoadRepos reads the repository config file and applies defaults.
// Returns the base directory and the repository list in file order.
func LoadRepos(path string) (string, []Repo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, ingerr.New(ingerr.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot read repository config %s", path), err)
	}

	var f reposFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", nil, ingerr.ConfigError(fmt.Sprintf("malformed repository config %s", path), err)
	}

	for i := range f.Repositories {
		r := &f.Repositories[i]
		if r.GithubURL == "" {
			return "", nil, ingerr.ConfigError(
				fmt.Sprintf("repository %d in %s is missing github_url", i, path), nil)
		}
		if r.ID == "" {
			r.ID = repoIDFromURL(r.GithubURL)
		}
		if r.Priority == "" {
			r.Priority = "medium"
		}
	}

	return f.ReposBaseDir, f.Repositories, nil
}

// repoIDFromURL derives a stable id from the URL basename, stripping any
// ".git" suffix.
func repoIDFromURL(url string) string {
	base := filepath.Base(strings.TrimSuffix(strings.TrimRight(url, "/"), ".git"))
	return strings.TrimSuffix(base, ".git")
}
