package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, relPath string, content []byte) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, content, 0o644))
}

func collect(t *testing.T, opts *Options) map[string]*FileInfo {
	t.Helper()
	s, err := New()
	require.NoError(t, err)

	ch, err := s.Scan(context.Background(), opts)
	require.NoError(t, err)

	files := map[string]*FileInfo{}
	for res := range ch {
		require.NoError(t, res.Err)
		files[res.File.Path] = res.File
	}
	return files
}

func TestScanDiscoversSupportedLanguages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main.rs", []byte("fn main() {}"))
	writeFile(t, root, "web/app.tsx", []byte("export const App = () => null;"))
	writeFile(t, root, "contracts/Token.sol", []byte("contract Token {}"))
	writeFile(t, root, "docs/ARCH.md", []byte("## Design"))
	writeFile(t, root, "deploy/values.yaml", []byte("replicas: 2"))
	writeFile(t, root, "infra/main.tf", []byte(`variable "env" {}`))
	writeFile(t, root, "README.txt", []byte("not ingestable"))
	writeFile(t, root, "Cargo.toml", []byte("[package]"))

	files := collect(t, &Options{RootDir: root})

	assert.Len(t, files, 6)
	assert.Equal(t, "rust", files["src/main.rs"].Language)
	assert.Equal(t, "typescript", files["web/app.tsx"].Language)
	assert.Equal(t, "solidity", files["contracts/Token.sol"].Language)
	assert.Equal(t, "documentation", files["docs/ARCH.md"].Language)
	assert.Equal(t, "yaml", files["deploy/values.yaml"].Language)
	assert.Equal(t, "terraform", files["infra/main.tf"].Language)
	assert.NotContains(t, files, "README.txt")
	assert.NotContains(t, files, "Cargo.toml")
}

func TestScanSkipDirsAtAnyDepth(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/lib.rs", []byte("fn a() {}"))
	writeFile(t, root, "node_modules/pkg/index.js", []byte("x"))
	writeFile(t, root, "services/api/node_modules/dep/mod.js", []byte("x"))
	writeFile(t, root, "services/api/target/debug/gen.rs", []byte("fn b() {}"))

	files := collect(t, &Options{
		RootDir:  root,
		SkipDirs: []string{"node_modules", "target"},
	})

	assert.Len(t, files, 1)
	assert.Contains(t, files, "src/lib.rs")
}

func TestScanRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", []byte("generated.rs\n"))
	writeFile(t, root, "src/.gitignore", []byte("local.rs\n"))
	writeFile(t, root, "src/keep.rs", []byte("fn k() {}"))
	writeFile(t, root, "generated.rs", []byte("fn g() {}"))
	writeFile(t, root, "src/local.rs", []byte("fn l() {}"))

	files := collect(t, &Options{RootDir: root, RespectGitignore: true})

	assert.Contains(t, files, "src/keep.rs")
	assert.NotContains(t, files, "generated.rs")
	assert.NotContains(t, files, "src/local.rs")
}

func TestScanDropsSensitiveFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "deploy/secrets.yaml", []byte("token: x"))
	writeFile(t, root, "deploy/values.yaml", []byte("replicas: 1"))

	files := collect(t, &Options{RootDir: root})

	assert.Contains(t, files, "deploy/values.yaml")
	assert.NotContains(t, files, "deploy/secrets.yaml")
}

func TestScanDropsOversizedAndBinary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.rs", make([]byte, 2048))
	writeFile(t, root, "bin.rs", []byte{'f', 'n', 0x00, 0x01})
	writeFile(t, root, "ok.rs", []byte("fn ok() {}"))

	files := collect(t, &Options{RootDir: root, MaxFileSize: 1024})

	assert.Len(t, files, 1)
	assert.Contains(t, files, "ok.rs")
}

func TestScanFlagsGeneratedAndCICD(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "gen.ts", []byte("// Code generated by protoc. DO NOT EDIT.\nexport const x = 1;"))
	writeFile(t, root, ".github/workflows/ci.yml", []byte("on: push"))

	files := collect(t, &Options{RootDir: root})

	require.Contains(t, files, "gen.ts")
	assert.True(t, files["gen.ts"].IsGenerated)

	require.Contains(t, files, ".github/workflows/ci.yml")
	assert.True(t, files[".github/workflows/ci.yml"].IsCICD)
	assert.Equal(t, "yaml", files[".github/workflows/ci.yml"].Language)
}

func TestScanLanguageFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", []byte("fn a() {}"))
	writeFile(t, root, "b.ts", []byte("const b = 1;"))

	files := collect(t, &Options{RootDir: root, Languages: []string{"rust"}})

	assert.Len(t, files, 1)
	assert.Contains(t, files, "a.rs")
}

func TestScanMissingRoot(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	_, err = s.Scan(context.Background(), &Options{RootDir: filepath.Join(t.TempDir(), "absent")})
	assert.Error(t, err)
}

func TestScanCancellation(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 200; i++ {
		writeFile(t, root, filepath.Join("src", string(rune('a'+i%26))+".rs"), []byte("fn f() {}"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s, err := New()
	require.NoError(t, err)
	ch, err := s.Scan(ctx, &Options{RootDir: root})
	require.NoError(t, err)

	cancel()
	for range ch {
	}
	// The channel closes after cancellation; reaching here is the assertion.
}

func TestMatchFilePattern(t *testing.T) {
	tests := []struct {
		base    string
		pattern string
		want    bool
	}{
		{"id_rsa", "id_rsa", true},
		{"server.pem", "*.pem", true},
		{"prod-credentials.yaml", "*credentials*", true},
		{".env.local", ".env.*", true},
		{"values.yaml", "*secrets*", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchFilePattern(tt.base, tt.pattern), "%s vs %s", tt.base, tt.pattern)
	}
}
