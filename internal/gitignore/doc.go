// Package gitignore implements the gitignore pattern syntax documented at
// https://git-scm.com/docs/gitignore. The repository scanner uses it to
// drop ignored files before they reach the chunkers, honoring nested
// .gitignore files the way git does.
//
// Supported syntax:
//   - wildcards (*, ?, **) and character classes
//   - rooted patterns (/target)
//   - directory-only patterns (node_modules/)
//   - negation (!keep.generated.ts)
//   - escaped leading # and ! and escaped trailing spaces
//
// A Matcher accumulates patterns and answers Match queries; matching is
// safe for concurrent use.
//
//	m := gitignore.New()
//	m.AddPattern("target/")
//	m.AddPattern("!target/idl.rs")
//
//	if m.Match("target/debug/build.rs", false) {
//	    // skipped by the scanner
//	}
//
// Nested .gitignore files scope their patterns to their directory:
//
//	m.AddFromFile(filepath.Join(repo, ".gitignore"), "")
//	m.AddFromFile(filepath.Join(repo, "contracts", ".gitignore"), "contracts")
package gitignore
