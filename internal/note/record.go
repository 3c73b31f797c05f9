package note

import (
	"github.com/notedb/notedb/internal/store"
)

// RecordOps parses one note and records its full replacement as deferred
// operations: a delete of the file's existing rows followed by inserts
// for everything the parse produced. The delete-first ordering is what
// makes replaying a log against the database a clean replace.
func RecordOps(p *Parser, in *Input, rec store.Recorder) error {
	doc, err := p.Parse(in)
	if err != nil {
		return err
	}

	rec.DeleteFile(in.Path)
	rec.Insert(store.TableFiles,
		in.Path, doc.Title, in.Hash, in.Atime.Unix(), in.Mtime.Unix())

	for _, alias := range doc.Aliases {
		rec.Insert(store.TableAliases, in.Path, alias)
	}
	for _, tag := range doc.Tags {
		rec.Insert(store.TableTags, in.Path, tag)
	}
	for _, link := range doc.Links {
		rec.Insert(store.TableLinks, in.Path, link.Dest, link.Kind, link.Pos)
	}
	for _, cite := range doc.Citations {
		rec.Insert(store.TableCitations, in.Path, cite.Key, cite.Pos)
	}
	for _, ref := range doc.Refs {
		rec.Insert(store.TableRefs, in.Path, ref.Ref, ref.Kind)
	}

	return nil
}
