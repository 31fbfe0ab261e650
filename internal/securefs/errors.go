// Package securefs confines caller-supplied paths to a vault root and
// performs all file I/O through an os.Root sandbox.
package securefs

import (
	"github.com/tphakala/vaultd/internal/errors"
)

// Sentinel errors for the securefs package.
var (
	// ErrPathTraversal indicates a resolved name that would leave the vault root.
	ErrPathTraversal = errors.NewStd("security error: path attempts to traverse outside base directory")

	// ErrInvalidPath indicates a path that cannot be mapped to a name inside the root.
	ErrInvalidPath = errors.NewStd("security error: invalid path specification")

	// ErrNotRegularFile indicates a file operation aimed at a directory or other non-regular entry.
	ErrNotRegularFile = errors.NewStd("security error: not a regular file")
)
