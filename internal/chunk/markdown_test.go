package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseMarkdown(t *testing.T, relPath, source string) *ParseResult {
	t.Helper()
	res, err := NewMarkdownParser().Parse(context.Background(), &FileInput{
		Path:    "/repo/" + relPath,
		RelPath: relPath,
		Content: []byte(source),
		RepoID:  "test-repo",
	})
	require.NoError(t, err)
	return res
}

func TestDocTypeForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"docs/ARCHITECTURE.md", DocTypeArchitecture},
		{"docs/ARCH.md", DocTypeArchitecture},
		{"docs/api/endpoints.md", DocTypeAPI},
		{"docs/auth-flow.md", DocTypeAuthentication},
		{"DEPLOYMENT.md", DocTypeDeployment},
		{"CONTRIBUTING.md", DocTypeDevelopment},
		{"docs/integration-guide.md", DocTypeIntegration},
		{"README.md", DocTypeDefault},
		{"notes.md", DocTypeDefault},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DocTypeForPath(tt.path))
		})
	}
}

func TestMarkdownSplitsOnLevel2Headings(t *testing.T) {
	source := `# Platform

Intro text that belongs to no section.

## Auth

Magic-link flow, session issuance.

### Token refresh

Details under a deeper heading stay in the parent section.

## Deployment

Helm charts live under deploy/.
`
	res := parseMarkdown(t, "docs/ARCH.md", source)
	require.True(t, res.OK())
	require.Len(t, res.Chunks, 2)

	auth := res.Chunks[0]
	assert.Equal(t, "Auth", auth.ItemName)
	assert.Equal(t, DocTypeArchitecture, auth.ItemType)
	assert.True(t, strings.HasPrefix(auth.Content, "## Auth"))
	assert.Contains(t, auth.Content, "### Token refresh")
	assert.Equal(t, "Platform", auth.Metadata["title"])
	assert.Equal(t, "2", auth.Metadata["section_level"])
	assert.Equal(t, DocTypeArchitecture, auth.Metadata["doc_type"])

	deploy := res.Chunks[1]
	assert.Equal(t, "Deployment", deploy.ItemName)
	assert.True(t, strings.HasPrefix(deploy.Content, "## Deployment"))
	assert.NotContains(t, auth.Content, "Helm charts")

	// Preamble text is not chunked.
	for _, c := range res.Chunks {
		assert.NotContains(t, c.Content, "Intro text")
	}
}

func TestMarkdownHeadingInsideFenceIsContent(t *testing.T) {
	source := "## Usage\n\n```\n## not a heading\n```\n\nmore usage\n"
	res := parseMarkdown(t, "README.md", source)
	require.True(t, res.OK())
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "Usage", res.Chunks[0].ItemName)
	assert.Contains(t, res.Chunks[0].Content, "## not a heading")
}

func TestMarkdownNoSections(t *testing.T) {
	res := parseMarkdown(t, "notes.md", "# Just a title\n\nSome prose with no level-2 headings.\n")
	require.True(t, res.OK())
	assert.Empty(t, res.Chunks)
	assert.Equal(t, 4, res.TotalLines)
}

func TestMarkdownUntitledSectionGetsAnonymousName(t *testing.T) {
	res := parseMarkdown(t, "notes.md", "## A\n\ncontent\n\n##\nmore\n")
	require.True(t, res.OK())
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "A", res.Chunks[0].ItemName)
	assert.Equal(t, AnonymousName(5), res.Chunks[1].ItemName)
}
