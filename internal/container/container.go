// Package container defines the abstract iterator both the VSIX/ZIP and
// MSI+CAB decoders produce (spec.md §4.C): a sequence of logical files,
// each with a normalized forward-slash path, a declared size and a lazily
// opened content stream.
package container

import "io"

// LogicalFile is one file entry yielded by a decoder.
type LogicalFile struct {
	// Path is normalized to forward slashes and stripped of any
	// container-specific prefix (e.g. VSIX's "Contents/").
	Path string
	Size int64
	// Open returns a fresh reader for the file's content. Decoders that
	// can only stream forward-once return a reader that is only valid
	// until the next call to the iterator's Next.
	Open func() (io.ReadCloser, error)
}

// Iterator yields LogicalFiles in the decoder's specified order (spec.md
// §4.C: MSI lexical by logical path, ZIP archive order).
type Iterator interface {
	// Next advances to the next logical file, returning false at the end
	// of the archive or on error (check Err after Next returns false).
	Next() bool
	File() LogicalFile
	Err() error
	Close() error
}
