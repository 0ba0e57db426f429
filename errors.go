package xwin

import "fmt"

// UserError indicates a bad flag combination or a refused license prompt;
// callers should exit with status 2 (spec.md §6 Exit codes).
type UserError struct {
	Reason string
}

func (e *UserError) Error() string { return e.Reason }

// ManifestError indicates a required root package was missing from the
// resolved Visual Studio manifest. It names the missing id so that manifest
// drift (spec.md §9) is diagnosable.
type ManifestError struct {
	MissingID string
	Reason    string
}

func (e *ManifestError) Error() string {
	if e.MissingID != "" {
		return fmt.Sprintf("manifest: missing required package %q: %s", e.MissingID, e.Reason)
	}
	return fmt.Sprintf("manifest: %s", e.Reason)
}

// IntegrityError indicates a downloaded blob's hash or size did not match
// the manifest's declared values.
type IntegrityError struct {
	Path             string
	ExpectedHash     string
	ActualHash       string
	ExpectedSize     int64
	ActualSize       int64
}

func (e *IntegrityError) Error() string {
	if e.ExpectedHash != e.ActualHash {
		return fmt.Sprintf("%s: hash mismatch: expected %s, got %s", e.Path, e.ExpectedHash, e.ActualHash)
	}
	return fmt.Sprintf("%s: size mismatch: expected %d, got %d", e.Path, e.ExpectedSize, e.ActualSize)
}

// CorruptArchive indicates a VSIX/ZIP or MSI/CAB container could not be
// parsed.
type CorruptArchive struct {
	Path   string
	Reason string
}

func (e *CorruptArchive) Error() string {
	return fmt.Sprintf("%s: corrupt archive: %s", e.Path, e.Reason)
}

// UnsupportedArchive indicates a container used a compression method or
// feature this decoder does not implement (e.g. a CAB folder compressed
// with something other than MSZIP or stored, or ZIP entries using
// anything but DEFLATE/store).
type UnsupportedArchive struct {
	Path   string
	Reason string
}

func (e *UnsupportedArchive) Error() string {
	return fmt.Sprintf("%s: unsupported archive: %s", e.Path, e.Reason)
}

// MissingCabinet indicates an MSI's Media table referenced a cabinet that
// was not present among its embedded streams.
type MissingCabinet struct {
	Name string
}

func (e *MissingCabinet) Error() string {
	return fmt.Sprintf("missing cabinet %q", e.Name)
}

// DuplicateContentConflict indicates two packages contributed files that
// map to the same output path with different content, and the path is not
// on the small whitelist of known-safe duplicates (spec.md §4.G stage 4).
type DuplicateContentConflict struct {
	Path   string
	HashA  string
	HashB  string
}

func (e *DuplicateContentConflict) Error() string {
	return fmt.Sprintf("%s: conflicting content from multiple packages (%s vs %s)", e.Path, e.HashA, e.HashB)
}

// FilesystemError wraps an I/O failure encountered while writing the
// output tree.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// Cancelled indicates the run was aborted by a stop signal
// (spec.md §5 Cancellation).
type Cancelled struct{}

func (e *Cancelled) Error() string { return "cancelled" }
