// Package configs provides embedded configuration templates for codevec.
//
// Templates are embedded at build time with //go:embed so they ship in
// every distribution. `codevec init` writes them into the working
// directory as a starting point.
package configs

import _ "embed"

// RepositoriesTemplate is the starting repository config.
// Written by `codevec init` as configs/repositories.yaml.
//
//go:embed repositories.example.yaml
var RepositoriesTemplate string

// CollectionsTemplate is the starting collection routing config.
// Written by `codevec init` as configs/collections.yaml.
//
//go:embed collections.example.yaml
var CollectionsTemplate string

// EnvTemplate lists every environment variable the pipeline reads.
// Written by `codevec init` as .env.example.
//
//go:embed env.example
var EnvTemplate string
