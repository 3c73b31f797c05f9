package note

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the YAML header of a note. All fields are optional.
type FrontMatter struct {
	Title   string     `yaml:"title"`
	Aliases stringList `yaml:"aliases"`
	Tags    stringList `yaml:"tags"`
	Refs    stringList `yaml:"refs"`
}

// stringList accepts either a YAML scalar or a sequence of scalars.
// Notes in the wild use both forms: `tags: go` and `tags: [go, sqlite]`.
type stringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		if s != "" {
			*l = stringList{s}
		}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := node.Decode(&ss); err != nil {
			return err
		}
		*l = stringList(ss)
		return nil
	default:
		return fmt.Errorf("expected scalar or sequence at line %d", node.Line)
	}
}

var fmDelimiter = []byte("---")

// splitFrontMatter separates the YAML front-matter block from the body.
// Returns the raw block (nil when absent), the body, and the body's byte
// offset in the original content. Link positions are reported against
// the original content, so the offset matters.
func splitFrontMatter(content []byte) (block, body []byte, offset int) {
	if !bytes.HasPrefix(content, []byte("---\n")) && !bytes.HasPrefix(content, []byte("---\r\n")) {
		return nil, content, 0
	}

	blockStart := bytes.IndexByte(content, '\n') + 1

	pos := blockStart
	for pos < len(content) {
		lineEnd := bytes.IndexByte(content[pos:], '\n')
		var line []byte
		var next int
		if lineEnd < 0 {
			line = content[pos:]
			next = len(content)
		} else {
			line = content[pos : pos+lineEnd]
			next = pos + lineEnd + 1
		}

		if bytes.Equal(bytes.TrimRight(line, "\r"), fmDelimiter) {
			return content[blockStart:pos], content[next:], next
		}
		pos = next
	}

	// No closing delimiter, treat everything as body
	return nil, content, 0
}

// parseFrontMatter decodes the raw front-matter block.
func parseFrontMatter(block []byte) (*FrontMatter, error) {
	var fm FrontMatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, err
	}
	return &fm, nil
}
