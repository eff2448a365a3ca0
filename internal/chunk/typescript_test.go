package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTS(t *testing.T, relPath, source string) *ParseResult {
	t.Helper()
	res, err := NewTypeScriptParser().Parse(context.Background(), &FileInput{
		Path:    "/repo/" + relPath,
		RelPath: relPath,
		Content: []byte(source),
		RepoID:  "test-repo",
	})
	require.NoError(t, err)
	return res
}

func TestTypeScriptTopLevelItems(t *testing.T) {
	source := `import { api } from "./api";

export function fetchUser(id: string): Promise<User> {
  return api.get("/users/" + id);
}

export class SessionStore {
  private sessions: Map<string, string> = new Map();
}

export interface User {
  id: string;
  name: string;
}

export type UserId = string;

export enum Role {
  Admin,
  Member,
}

export const MAX_SESSIONS = 100;

const toUpper = (s: string) => s.toUpperCase();
`
	res := parseTS(t, "src/session.ts", source)
	require.True(t, res.OK())

	byName := map[string]*Chunk{}
	for _, c := range res.Chunks {
		byName[c.ItemName] = c
	}

	require.Contains(t, byName, "fetchUser")
	fn := byName["fetchUser"]
	assert.Equal(t, ItemFunction, fn.ItemType)
	assert.Equal(t, "true", fn.Metadata["exported"])
	assert.True(t, len(fn.Content) > 0 && fn.Content[:6] == "export", "chunk keeps the export prefix")
	assert.Contains(t, fn.Metadata["imports"], `import { api } from "./api";`)

	require.Contains(t, byName, "SessionStore")
	assert.Equal(t, ItemClass, byName["SessionStore"].ItemType)

	require.Contains(t, byName, "User")
	assert.Equal(t, ItemInterface, byName["User"].ItemType)

	require.Contains(t, byName, "UserId")
	assert.Equal(t, ItemTypeAlias, byName["UserId"].ItemType)

	require.Contains(t, byName, "Role")
	assert.Equal(t, ItemEnum, byName["Role"].ItemType)

	require.Contains(t, byName, "MAX_SESSIONS")
	assert.Equal(t, ItemConstant, byName["MAX_SESSIONS"].ItemType)

	// Arrow function assigned to a const is a function, not a constant.
	require.Contains(t, byName, "toUpper")
	assert.Equal(t, ItemFunction, byName["toUpper"].ItemType)
	assert.Empty(t, byName["toUpper"].Metadata["exported"])

	for _, c := range res.Chunks {
		assert.Equal(t, "typescript", c.Language)
		assert.Equal(t, "ts", c.Metadata["dialect"])
		assert.Equal(t, "true", c.Metadata["is_typescript"])
	}
}

func TestTSXReactComponentDetection(t *testing.T) {
	source := `export function LoginForm() {
  return <form className="login" />;
}

export function parseToken(raw: string) {
  return raw.trim();
}

export const useSession = () => {
  const [state, setState] = useState(null);
  return state;
};
`
	res := parseTS(t, "src/components/LoginForm.tsx", source)
	require.True(t, res.OK())

	byName := map[string]*Chunk{}
	for _, c := range res.Chunks {
		byName[c.ItemName] = c
	}

	require.Contains(t, byName, "LoginForm")
	assert.Equal(t, "true", byName["LoginForm"].Metadata["is_react_component"])
	assert.Equal(t, "tsx", byName["LoginForm"].Metadata["dialect"])

	// Lowercase name, no JSX: not a component.
	require.Contains(t, byName, "parseToken")
	assert.Empty(t, byName["parseToken"].Metadata["is_react_component"])

	// Hook usage alone does not make a lowercase name a component.
	require.Contains(t, byName, "useSession")
	assert.Empty(t, byName["useSession"].Metadata["is_react_component"])
}

func TestJavaScriptDialect(t *testing.T) {
	source := `function handler(req, res) {
  res.end("ok");
}
`
	res, err := NewJavaScriptParser().Parse(context.Background(), &FileInput{
		RelPath: "src/handler.js",
		Content: []byte(source),
		RepoID:  "test-repo",
	})
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Len(t, res.Chunks, 1)

	c := res.Chunks[0]
	assert.Equal(t, "javascript", c.Language)
	assert.Equal(t, "handler", c.ItemName)
	assert.Equal(t, "js", c.Metadata["dialect"])
	assert.Equal(t, "false", c.Metadata["is_typescript"])
}

func TestTypeScriptReExportSkipped(t *testing.T) {
	res := parseTS(t, "src/index.ts", `export { fetchUser } from "./session";`)
	require.True(t, res.OK())
	assert.Empty(t, res.Chunks)
}

func TestUsesHooks(t *testing.T) {
	assert.True(t, usesHooks("const [x] = useState(0);"))
	assert.True(t, usesHooks("useEffect(() => {}, []);"))
	assert.False(t, usesHooks("warehouse.load()"))
	assert.False(t, usesHooks("reuseBuffer()"))
	assert.False(t, usesHooks("user.name"))
}
