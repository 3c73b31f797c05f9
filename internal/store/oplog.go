package store

import (
	"fmt"
	"time"

	"github.com/notedb/notedb/internal/errors"
)

// OpKind distinguishes the two deferred mutation kinds.
type OpKind int

const (
	// OpKindDelete removes every row belonging to one file path.
	OpKindDelete OpKind = iota
	// OpKindInsert adds one row to one table.
	OpKindInsert
)

// Op is a single deferred database mutation. Ops are pure data, carrying
// no handles, so worker goroutines can produce them without touching the
// database.
type Op struct {
	Kind OpKind

	// Path is the delete key (OpKindDelete only).
	Path string

	// Table and Args describe one row (OpKindInsert only). Args are
	// positional, in the table's column order.
	Table string
	Args  []any
}

// Recorder receives deferred mutations from indexing logic. The parse
// stage writes against this interface; the merge stage replays the
// recorded ops against a real transaction.
type Recorder interface {
	DeleteFile(path string)
	Insert(table string, args ...any)
}

// OpLog is the ordered operation log for exactly one file.
// It implements Recorder by appending.
type OpLog struct {
	Path string
	Ops  []Op
}

// DeleteFile implements Recorder.
func (l *OpLog) DeleteFile(path string) {
	l.Ops = append(l.Ops, Op{Kind: OpKindDelete, Path: path})
}

// Insert implements Recorder.
func (l *OpLog) Insert(table string, args ...any) {
	l.Ops = append(l.Ops, Op{Kind: OpKindInsert, Table: table, Args: args})
}

// Retime returns a copy of the log whose files-row insert carries the
// given times. A cached log replayed for identical content at a later
// dispatch is valid except for the times captured when the entry was
// built; without the rewrite the stored mtime would never converge to
// disk and change detection would re-flag the file on every run.
// The receiver is left untouched.
func (l *OpLog) Retime(atime, mtime time.Time) *OpLog {
	out := &OpLog{Path: l.Path, Ops: make([]Op, len(l.Ops))}
	copy(out.Ops, l.Ops)

	for i, op := range out.Ops {
		if op.Kind != OpKindInsert || op.Table != TableFiles {
			continue
		}
		if len(op.Args) != len(tableColumns[TableFiles]) {
			continue
		}
		args := make([]any, len(op.Args))
		copy(args, op.Args)
		args[3] = atime.Unix()
		args[4] = mtime.Unix()
		out.Ops[i].Args = args
	}
	return out
}

// Validate checks the log's structural invariants: delete ops must
// precede all inserts, and every insert must match a known table's
// column count.
func (l *OpLog) Validate() error {
	sawInsert := false
	for i, op := range l.Ops {
		switch op.Kind {
		case OpKindDelete:
			if sawInsert {
				return errors.New(errors.ErrCodeOpLogOrder,
					fmt.Sprintf("delete after insert at op %d for %s", i, l.Path), nil)
			}
			if op.Path == "" {
				return errors.New(errors.ErrCodeOpLogOrder,
					fmt.Sprintf("delete with empty path at op %d for %s", i, l.Path), nil)
			}
		case OpKindInsert:
			sawInsert = true
			cols, ok := tableColumns[op.Table]
			if !ok {
				return errors.New(errors.ErrCodeOpLogOrder,
					fmt.Sprintf("unknown table %q at op %d for %s", op.Table, i, l.Path), nil)
			}
			if len(op.Args) != len(cols) {
				return errors.New(errors.ErrCodeOpLogOrder,
					fmt.Sprintf("table %q expects %d args, got %d at op %d for %s",
						op.Table, len(cols), len(op.Args), i, l.Path), nil)
			}
		default:
			return errors.New(errors.ErrCodeOpLogOrder,
				fmt.Sprintf("unknown op kind %d at op %d for %s", op.Kind, i, l.Path), nil)
		}
	}
	return nil
}
