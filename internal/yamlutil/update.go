// Package yamlutil performs surgical edits on YAML files without disturbing
// comments or formatting.
package yamlutil

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SetScalar replaces the value of a top-level scalar key in a YAML document.
//
// This uses text-based manipulation so that comments, blank lines, and key
// ordering in the file survive the edit. The document is parsed once
// (read-only) to confirm the key exists and currently holds a scalar.
func SetScalar(content string, key string, value interface{}) (string, error) {
	if err := verifyScalarKey(content, key); err != nil {
		return "", err
	}

	lines := strings.Split(content, "\n")
	searchKey := key + ":"

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != searchKey && !strings.HasPrefix(trimmed, searchKey+" ") {
			continue
		}
		// Only top-level keys: no indentation.
		if indentOf(line) != "" {
			continue
		}

		comment := trailingComment(line)
		lines[i] = fmt.Sprintf("%s %v%s", searchKey, value, comment)
		return strings.Join(lines, "\n"), nil
	}

	return "", fmt.Errorf("key %q not found in YAML document", key)
}

// SetScalarOrAppend behaves like SetScalar but appends the key at the end of
// the document when it is absent.
func SetScalarOrAppend(content string, key string, value interface{}) (string, error) {
	updated, err := SetScalar(content, key, value)
	if err == nil {
		return updated, nil
	}

	var builder strings.Builder
	builder.WriteString(content)
	if !strings.HasSuffix(content, "\n") && content != "" {
		builder.WriteString("\n")
	}
	builder.WriteString(fmt.Sprintf("%s: %v\n", key, value))
	return builder.String(), nil
}

// verifyScalarKey parses the document and checks the key maps to a scalar.
func verifyScalarKey(content, key string) error {
	var root map[string]interface{}
	if err := yaml.Unmarshal([]byte(content), &root); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	value, ok := root[key]
	if !ok {
		return fmt.Errorf("key %q not found in YAML document", key)
	}

	switch value.(type) {
	case map[string]interface{}, []interface{}:
		return fmt.Errorf("key %q holds a nested structure, not a scalar", key)
	}
	return nil
}

// indentOf extracts the leading whitespace from a line.
func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// trailingComment returns the line's trailing comment including its leading
// whitespace, or the empty string.
func trailingComment(line string) string {
	idx := strings.Index(line, " #")
	if idx < 0 {
		return ""
	}
	return line[idx:]
}
