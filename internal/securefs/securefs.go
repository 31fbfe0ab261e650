package securefs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tphakala/vaultd/internal/logger"
)

const (
	// FilePermissions is applied to files created in the vault.
	FilePermissions os.FileMode = 0o644
	// DirPermissions is applied to directories created in the vault.
	DirPermissions os.FileMode = 0o755
	// basePermissions is used when the vault root itself has to be created.
	basePermissions os.FileMode = 0o750
)

// GetLogger returns the securefs package logger scoped to the securefs module.
// It is fetched on every call so it follows a logger installed after init.
func GetLogger() logger.Logger {
	return logger.Global().Module("securefs")
}

// SecureFS performs file operations on vault paths using os.Root for
// OS-level sandboxing.
//
// Vault paths are rooted slash paths as produced by Confine ("/", "/a/b.md").
// Every operation maps them to a name relative to the base directory and
// hands that name to os.Root, which refuses to leave the root through ".."
// components or symbolic links, and is not subject to check-then-use races.
type SecureFS struct {
	baseDir string   // absolute base directory all operations are restricted to
	root    *os.Root // sandboxed filesystem root
}

// New opens a secure filesystem on baseDir, creating the directory if it
// does not exist yet.
func New(baseDir string) (*SecureFS, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("%w: base directory is empty", ErrInvalidPath)
	}

	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, basePermissions); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem sandbox: %w", err)
	}

	return &SecureFS{
		baseDir: absPath,
		root:    root,
	}, nil
}

// RelativePath converts a vault path into the root-relative name used for
// os.Root operations. The vault root maps to ".".
func (sfs *SecureFS) RelativePath(vaultPath string) (string, error) {
	if strings.IndexByte(vaultPath, 0) >= 0 {
		return "", fmt.Errorf("%w: path contains NUL byte", ErrInvalidPath)
	}
	if !path.IsAbs(vaultPath) {
		return "", fmt.Errorf("%w: %q is not a vault path", ErrInvalidPath, vaultPath)
	}

	cleaned := path.Clean(vaultPath)
	if cleaned == "/" {
		return ".", nil
	}

	relPath := filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))
	if !filepath.IsLocal(relPath) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, vaultPath)
	}

	return relPath, nil
}

// Resolve returns the absolute OS path a vault path refers to. It is meant
// for log output; I/O must go through the SecureFS methods.
func (sfs *SecureFS) Resolve(vaultPath string) string {
	relPath, err := sfs.RelativePath(vaultPath)
	if err != nil {
		return sfs.baseDir
	}
	return filepath.Join(sfs.baseDir, relPath)
}

// ParentPath returns the vault path of the directory containing vaultPath.
// The parent of the root is the root.
func ParentPath(vaultPath string) string {
	return path.Dir(path.Clean("/" + vaultPath))
}

// createDirComponent creates one directory, ignoring "already exists" errors
func (sfs *SecureFS) createDirComponent(relPath string, perm os.FileMode) error {
	err := sfs.root.Mkdir(relPath, perm)
	if err != nil && !os.IsExist(err) {
		return fmt.Errorf("failed to create directory component %s: %w", relPath, err)
	}
	return nil
}

// MkdirAll creates a directory and all missing parents inside the root.
func (sfs *SecureFS) MkdirAll(vaultPath string, perm os.FileMode) error {
	relPath, err := sfs.RelativePath(vaultPath)
	if err != nil {
		return err
	}

	if relPath == "." {
		return nil
	}

	currentPath := ""
	for component := range strings.SplitSeq(relPath, string(filepath.Separator)) {
		if component == "" {
			continue
		}

		currentPath = filepath.Join(currentPath, component)
		if err := sfs.createDirComponent(currentPath, perm); err != nil {
			return err
		}
	}

	return nil
}

// ReadFile reads a whole file.
func (sfs *SecureFS) ReadFile(vaultPath string) ([]byte, error) {
	file, err := sfs.openFile(vaultPath, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			GetLogger().Warn("Failed to close file", logger.Error(err))
		}
	}()

	return io.ReadAll(file)
}

// WriteFile creates or truncates a file and writes data to it.
func (sfs *SecureFS) WriteFile(vaultPath string, data []byte, perm os.FileMode) error {
	return sfs.writeWithFlags(vaultPath, data, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
}

// AppendFile appends data to a file, creating it when missing.
func (sfs *SecureFS) AppendFile(vaultPath string, data []byte, perm os.FileMode) error {
	return sfs.writeWithFlags(vaultPath, data, os.O_WRONLY|os.O_CREATE|os.O_APPEND, perm)
}

func (sfs *SecureFS) writeWithFlags(vaultPath string, data []byte, flag int, perm os.FileMode) (err error) {
	file, err := sfs.openFile(vaultPath, flag, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = file.Write(data)
	return err
}

// openFile opens a file with path validation
func (sfs *SecureFS) openFile(vaultPath string, flag int, perm os.FileMode) (*os.File, error) {
	relPath, err := sfs.RelativePath(vaultPath)
	if err != nil {
		return nil, err
	}

	return sfs.root.OpenFile(relPath, flag, perm)
}

// Rename moves oldPath to newPath within the sandbox.
func (sfs *SecureFS) Rename(oldPath, newPath string) error {
	oldRelPath, err := sfs.RelativePath(oldPath)
	if err != nil {
		return err
	}

	newRelPath, err := sfs.RelativePath(newPath)
	if err != nil {
		return err
	}

	return sfs.root.Rename(oldRelPath, newRelPath)
}

// RemoveFile removes a file or symbolic link. Directories are refused with
// ErrNotRegularFile.
func (sfs *SecureFS) RemoveFile(vaultPath string) error {
	relPath, err := sfs.RelativePath(vaultPath)
	if err != nil {
		return err
	}

	info, err := sfs.root.Lstat(relPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotRegularFile, vaultPath)
	}

	return sfs.root.Remove(relPath)
}

// Remove removes a file or an empty directory. The root itself cannot be
// removed.
func (sfs *SecureFS) Remove(vaultPath string) error {
	relPath, err := sfs.RelativePath(vaultPath)
	if err != nil {
		return err
	}
	if relPath == "." {
		return fmt.Errorf("%w: refusing to remove vault root", ErrInvalidPath)
	}

	return sfs.root.Remove(relPath)
}

// Stat returns file info, following symbolic links inside the root.
func (sfs *SecureFS) Stat(vaultPath string) (fs.FileInfo, error) {
	relPath, err := sfs.RelativePath(vaultPath)
	if err != nil {
		return nil, err
	}

	return sfs.root.Stat(relPath)
}

// ReadDir lists a directory inside the root.
func (sfs *SecureFS) ReadDir(vaultPath string) ([]os.DirEntry, error) {
	relPath, err := sfs.RelativePath(vaultPath)
	if err != nil {
		return nil, err
	}

	dirFile, err := sfs.root.Open(relPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory: %w", err)
	}
	defer func() {
		if err := dirFile.Close(); err != nil {
			GetLogger().Warn("Failed to close directory", logger.Error(err))
		}
	}()

	entries, err := dirFile.ReadDir(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory entries: %w", err)
	}

	return entries, nil
}

// BaseDir returns the absolute base directory path of the secure filesystem.
func (sfs *SecureFS) BaseDir() string {
	return sfs.baseDir
}

// Close closes the underlying Root
func (sfs *SecureFS) Close() error {
	if sfs.root != nil {
		return sfs.root.Close()
	}
	return nil
}
