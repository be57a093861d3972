package materialize

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Matches KEY=value, optionally prefixed with "export "
var envAssignRe = regexp.MustCompile(`^(\s*(?:export\s+)?)([A-Za-z_][A-Za-z0-9_]*)\s*=(.*)$`)

type envLine struct {
	raw    string
	prefix string
	key    string
}

// EnvFile is an editable dotenv document. Comments, blank lines and
// ordering are kept; only assignments touched through Set change.
type EnvFile struct {
	lines           []envLine
	trailingNewline bool
}

// ParseEnv parses dotenv content
func ParseEnv(data []byte) *EnvFile {
	content := string(data)
	e := &EnvFile{trailingNewline: strings.HasSuffix(content, "\n")}
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return e
	}

	for _, raw := range strings.Split(content, "\n") {
		line := envLine{raw: raw}
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			if m := envAssignRe.FindStringSubmatch(raw); m != nil {
				line.prefix = m[1]
				line.key = m[2]
			}
		}
		e.lines = append(e.lines, line)
	}

	return e
}

// ReadEnvFile loads a dotenv file from disk
func ReadEnvFile(path string) (*EnvFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseEnv(data), nil
}

// Get returns the last assigned value for key, unquoted
func (e *EnvFile) Get(key string) (string, bool) {
	value, found := "", false
	for _, l := range e.lines {
		if l.key != key {
			continue
		}
		m := envAssignRe.FindStringSubmatch(l.raw)
		value, found = unquote(strings.TrimSpace(m[3])), true
	}
	return value, found
}

// Has reports whether key is assigned anywhere in the file
func (e *EnvFile) Has(key string) bool {
	_, ok := e.Get(key)
	return ok
}

// Set replaces every assignment of key, or appends one if there is none.
// It reports whether an existing assignment was replaced.
func (e *EnvFile) Set(key, value string) bool {
	replaced := false
	for i, l := range e.lines {
		if l.key != key {
			continue
		}
		e.lines[i].raw = fmt.Sprintf("%s%s=%s", l.prefix, key, value)
		replaced = true
	}
	if !replaced {
		e.lines = append(e.lines, envLine{raw: fmt.Sprintf("%s=%s", key, value), key: key})
		e.trailingNewline = true
	}
	return replaced
}

// Keys returns assigned keys in file order, without duplicates
func (e *EnvFile) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, l := range e.lines {
		if l.key == "" || seen[l.key] {
			continue
		}
		seen[l.key] = true
		keys = append(keys, l.key)
	}
	return keys
}

// Bytes renders the document
func (e *EnvFile) Bytes() []byte {
	var b strings.Builder
	for i, l := range e.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.raw)
	}
	if e.trailingNewline && len(e.lines) > 0 {
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// WriteFile writes the document with owner-only permissions, since it holds secrets
func (e *EnvFile) WriteFile(path string) error {
	return os.WriteFile(path, e.Bytes(), 0600)
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
