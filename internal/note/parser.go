// Package note parses plain-text notes into index entities and records
// their database mutations as deferred operations.
package note

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/notedb/notedb/internal/errors"
)

// Input is one note handed to the parser. Hash and times are captured
// by the coordinator at dispatch, not read from disk here.
type Input struct {
	Path      string
	Content   []byte
	Hash      string
	Mtime     time.Time
	Atime     time.Time
	Encrypted bool
}

// Document is the parsed view of one note.
type Document struct {
	Title     string
	Aliases   []string
	Tags      []string
	Links     []Link
	Citations []Citation
	Refs      []Ref
}

// Link is an outgoing link. Pos is the byte offset in the note.
type Link struct {
	Dest string
	Kind string
	Pos  int
}

// Citation is one @citekey occurrence. Pos is the byte offset.
type Citation struct {
	Key string
	Pos int
}

// Ref is an external reference declared in front matter.
type Ref struct {
	Ref  string
	Kind string
}

// Link kinds recorded in the links table.
const (
	LinkKindWiki = "wiki"
	LinkKindOrg  = "org"
	LinkKindMd   = "md"
	LinkKindURL  = "url"
)

var (
	// [[target]] and [[target|description]]
	wikiLinkRe = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]+))?\]\]`)
	// [[target][description]] (org style)
	orgLinkRe = regexp.MustCompile(`\[\[([^\[\]]+)\]\[([^\[\]]+)\]\]`)
	// [text](target)
	mdLinkRe = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)
	// #tag after whitespace or start of line
	tagRe = regexp.MustCompile(`(?m)(?:^|[\s(])#([\p{L}\p{N}_/-]+)`)
	// @citekey and [@citekey], pandoc style
	citationRe = regexp.MustCompile(`(?m)(?:^|[\s\[(;])@([A-Za-z0-9_][A-Za-z0-9_:.#$%&+?<>~/-]*)`)
	// #+title: heading (org style)
	orgTitleRe = regexp.MustCompile(`(?mi)^#\+title:\s*(.+)$`)
	// # heading (markdown)
	mdTitleRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// Parser turns note content into a Document. A Parser holds reusable
// scratch state and is not safe for concurrent use; each pool worker
// owns one.
type Parser struct {
	doc  Document
	seen map[string]struct{}
}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{
		seen: make(map[string]struct{}),
	}
}

// Reset clears all scratch state. Called at the start of every Parse, so
// state never leaks between files regardless of prior errors.
func (p *Parser) Reset() {
	p.doc.Title = ""
	p.doc.Aliases = p.doc.Aliases[:0]
	p.doc.Tags = p.doc.Tags[:0]
	p.doc.Links = p.doc.Links[:0]
	p.doc.Citations = p.doc.Citations[:0]
	p.doc.Refs = p.doc.Refs[:0]
	clear(p.seen)
}

// Parse extracts the Document from one note. The returned Document is
// owned by the Parser and valid until the next Parse call.
//
// Encrypted inputs are not parsed; they produce a bare document whose
// title derives from the file name, so the file is still tracked.
func (p *Parser) Parse(in *Input) (*Document, error) {
	p.Reset()

	if in.Encrypted {
		p.doc.Title = titleFromPath(in.Path, true)
		return &p.doc, nil
	}

	block, body, offset := splitFrontMatter(in.Content)
	if block != nil {
		fm, err := parseFrontMatter(block)
		if err != nil {
			return nil, errors.New(errors.ErrCodeParseFailed,
				fmt.Sprintf("invalid front matter in %s", in.Path), err).
				WithDetail("path", in.Path)
		}
		p.doc.Title = strings.TrimSpace(fm.Title)
		for _, a := range fm.Aliases {
			p.addAlias(a)
		}
		for _, t := range fm.Tags {
			p.addTag(t)
		}
		for _, r := range fm.Refs {
			p.addRef(r)
		}
	}

	if p.doc.Title == "" {
		p.doc.Title = titleFromBody(body)
	}
	if p.doc.Title == "" {
		p.doc.Title = titleFromPath(in.Path, false)
	}

	p.extractLinks(body, offset)
	p.extractTags(body)
	p.extractCitations(body, offset)

	return &p.doc, nil
}

func (p *Parser) addAlias(alias string) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return
	}
	key := "alias\x00" + alias
	if _, ok := p.seen[key]; ok {
		return
	}
	p.seen[key] = struct{}{}
	p.doc.Aliases = append(p.doc.Aliases, alias)
}

func (p *Parser) addTag(tag string) {
	tag = strings.TrimSpace(strings.TrimPrefix(tag, "#"))
	if tag == "" {
		return
	}
	key := "tag\x00" + tag
	if _, ok := p.seen[key]; ok {
		return
	}
	p.seen[key] = struct{}{}
	p.doc.Tags = append(p.doc.Tags, tag)
}

func (p *Parser) addRef(ref string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return
	}
	key := "ref\x00" + ref
	if _, ok := p.seen[key]; ok {
		return
	}
	p.seen[key] = struct{}{}

	kind := "ref"
	if strings.Contains(ref, "://") {
		kind = LinkKindURL
	}
	p.doc.Refs = append(p.doc.Refs, Ref{Ref: ref, Kind: kind})
}

// extractLinks finds org, wiki, and markdown links. Org links run first;
// their spans are masked so the wiki pattern cannot re-match inside them.
func (p *Parser) extractLinks(body []byte, offset int) {
	masked := body

	if orgMatches := orgLinkRe.FindAllSubmatchIndex(body, -1); len(orgMatches) > 0 {
		masked = bytes.Clone(body)
		for _, m := range orgMatches {
			dest := string(body[m[2]:m[3]])
			p.doc.Links = append(p.doc.Links, Link{
				Dest: dest,
				Kind: LinkKindOrg,
				Pos:  offset + m[0],
			})
			for i := m[0]; i < m[1]; i++ {
				masked[i] = ' '
			}
		}
	}

	for _, m := range wikiLinkRe.FindAllSubmatchIndex(masked, -1) {
		dest := strings.TrimSpace(string(masked[m[2]:m[3]]))
		if dest == "" {
			continue
		}
		p.doc.Links = append(p.doc.Links, Link{
			Dest: dest,
			Kind: LinkKindWiki,
			Pos:  offset + m[0],
		})
	}

	for _, m := range mdLinkRe.FindAllSubmatchIndex(masked, -1) {
		dest := string(masked[m[2]:m[3]])
		if dest == "" {
			continue
		}
		kind := LinkKindMd
		if strings.Contains(dest, "://") {
			kind = LinkKindURL
		}
		p.doc.Links = append(p.doc.Links, Link{
			Dest: dest,
			Kind: kind,
			Pos:  offset + m[0],
		})
	}
}

func (p *Parser) extractTags(body []byte) {
	for _, m := range tagRe.FindAllSubmatch(body, -1) {
		p.addTag(string(m[1]))
	}
}

func (p *Parser) extractCitations(body []byte, offset int) {
	for _, m := range citationRe.FindAllSubmatchIndex(body, -1) {
		key := strings.TrimRight(string(body[m[2]:m[3]]), ".,:;")
		if key == "" {
			continue
		}
		p.doc.Citations = append(p.doc.Citations, Citation{
			Key: key,
			Pos: offset + m[2],
		})
	}
}

// titleFromBody finds the first org or markdown title heading.
func titleFromBody(body []byte) string {
	if m := orgTitleRe.FindSubmatch(body); m != nil {
		return strings.TrimSpace(string(m[1]))
	}
	if m := mdTitleRe.FindSubmatch(body); m != nil {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}

// titleFromPath derives a title from the file name. Encrypted variants
// carry two suffixes (note.md.gpg), both are stripped.
func titleFromPath(notePath string, encrypted bool) string {
	base := path.Base(notePath)
	base = strings.TrimSuffix(base, path.Ext(base))
	if encrypted {
		base = strings.TrimSuffix(base, path.Ext(base))
	}
	return base
}
