// server/filesystem/markdown.go
package filesystem

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vinizap/diary/server/domain"
)

// MemoryPath is the file a memory is exported to inside dir.
func MemoryPath(dir string, m domain.Memory) string {
	return filepath.Join(dir, m.ID+".md")
}

// EncodeMemory renders a memory as markdown with YAML frontmatter.
func EncodeMemory(m domain.Memory) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("---\n")

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}

	buf.WriteString("---\n\n")
	buf.WriteString(m.Content)
	buf.WriteString("\n")

	return buf.Bytes(), nil
}

// ReadMemory parses a file written by WriteMemory. Only whole "---" lines
// delimit the frontmatter, and the body is returned exactly as written.
func ReadMemory(path string) (domain.Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Memory{}, err
	}

	rest, ok := bytes.CutPrefix(data, []byte("---\n"))
	if !ok {
		return domain.Memory{}, fmt.Errorf("invalid frontmatter format in %s", path)
	}
	front, body, ok := bytes.Cut(rest, []byte("\n---\n"))
	if !ok {
		return domain.Memory{}, fmt.Errorf("invalid frontmatter format in %s", path)
	}

	var m domain.Memory
	if err := yaml.Unmarshal(front, &m); err != nil {
		return domain.Memory{}, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	// EncodeMemory puts a blank line before the body and a newline after it.
	body = bytes.TrimPrefix(body, []byte("\n"))
	body = bytes.TrimSuffix(body, []byte("\n"))
	m.Content = string(body)

	return m, nil
}

func WriteMemory(dir string, m domain.Memory) (string, error) {
	data, err := EncodeMemory(m)
	if err != nil {
		return "", err
	}
	path := MemoryPath(dir, m)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// ExportMemories writes every memory into dir, creating it if needed, and
// returns the number of files written.
func ExportMemories(dir string, memories []domain.Memory) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create export directory: %w", err)
	}

	for i, m := range memories {
		if m.ID == "" {
			return i, fmt.Errorf("memory %q has no id", m.Title)
		}
		if _, err := WriteMemory(dir, m); err != nil {
			return i, fmt.Errorf("export memory %s: %w", m.ID, err)
		}
	}
	return len(memories), nil
}
