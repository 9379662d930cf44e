package git

import (
	"errors"
	"os"
	"sync/atomic"

	billy "github.com/go-git/go-billy/v5"
)

// ErrLimitExceeded is returned once a clone creates more files or writes more bytes
// than its LimitedFs allows
var ErrLimitExceeded = errors.New("clone exceeds configured size limits")

// limitUsage is shared by a LimitedFs and every filesystem chrooted from it
type limitUsage struct {
	files atomic.Int64
	bytes atomic.Int64
}

// LimitedFs wraps a billy.Filesystem and caps the number of files created and the
// total number of bytes written through it. A zero limit disables that check.
type LimitedFs struct {
	Fs            billy.Filesystem
	MaxFiles      int64
	TotalFileSize int64

	usage *limitUsage
}

// NewLimitedFs wraps fs with the given limits
func NewLimitedFs(fs billy.Filesystem, maxFiles, totalFileSize int64) *LimitedFs {
	return &LimitedFs{
		Fs:            fs,
		MaxFiles:      maxFiles,
		TotalFileSize: totalFileSize,
		usage:         &limitUsage{},
	}
}

func (f *LimitedFs) used() *limitUsage {
	if f.usage == nil {
		f.usage = &limitUsage{}
	}
	return f.usage
}

func (f *LimitedFs) reserveFile() error {
	n := f.used().files.Add(1)
	if f.MaxFiles > 0 && n > f.MaxFiles {
		return ErrLimitExceeded
	}
	return nil
}

func (f *LimitedFs) reserveBytes(size int) error {
	n := f.used().bytes.Add(int64(size))
	if f.TotalFileSize > 0 && n > f.TotalFileSize {
		return ErrLimitExceeded
	}
	return nil
}

// Create creates the named file, counting it against MaxFiles
func (f *LimitedFs) Create(filename string) (billy.File, error) {
	return f.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

// Open opens the named file for reading
func (f *LimitedFs) Open(filename string) (billy.File, error) {
	return f.Fs.Open(filename)
}

// OpenFile opens the named file; files opened with O_CREATE count against MaxFiles
func (f *LimitedFs) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&os.O_CREATE != 0 {
		if err := f.reserveFile(); err != nil {
			return nil, err
		}
	}
	file, err := f.Fs.OpenFile(filename, flag, perm)
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: file, fs: f}, nil
}

// Stat returns the FileInfo of the named file
func (f *LimitedFs) Stat(filename string) (os.FileInfo, error) {
	return f.Fs.Stat(filename)
}

// Rename renames oldpath to newpath
func (f *LimitedFs) Rename(oldpath, newpath string) error {
	return f.Fs.Rename(oldpath, newpath)
}

// Remove removes the named file or empty directory
func (f *LimitedFs) Remove(filename string) error {
	return f.Fs.Remove(filename)
}

// Join joins path elements using the underlying filesystem separator
func (f *LimitedFs) Join(elem ...string) string {
	return f.Fs.Join(elem...)
}

// TempFile creates a temporary file, counting it against MaxFiles
func (f *LimitedFs) TempFile(dir, prefix string) (billy.File, error) {
	if err := f.reserveFile(); err != nil {
		return nil, err
	}
	file, err := f.Fs.TempFile(dir, prefix)
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: file, fs: f}, nil
}

// ReadDir reads the named directory
func (f *LimitedFs) ReadDir(path string) ([]os.FileInfo, error) {
	return f.Fs.ReadDir(path)
}

// MkdirAll creates a directory and its parents
func (f *LimitedFs) MkdirAll(filename string, perm os.FileMode) error {
	return f.Fs.MkdirAll(filename, perm)
}

// Lstat returns the FileInfo of the named file without following symlinks
func (f *LimitedFs) Lstat(filename string) (os.FileInfo, error) {
	return f.Fs.Lstat(filename)
}

// Symlink creates a symbolic link, counting it against MaxFiles
func (f *LimitedFs) Symlink(target, link string) error {
	if err := f.reserveFile(); err != nil {
		return err
	}
	return f.Fs.Symlink(target, link)
}

// Readlink returns the target of a symbolic link
func (f *LimitedFs) Readlink(link string) (string, error) {
	return f.Fs.Readlink(link)
}

// Chroot returns a LimitedFs rooted at path that shares this filesystem's usage counters
func (f *LimitedFs) Chroot(path string) (billy.Filesystem, error) {
	chrooted, err := f.Fs.Chroot(path)
	if err != nil {
		return nil, err
	}
	return &LimitedFs{
		Fs:            chrooted,
		MaxFiles:      f.MaxFiles,
		TotalFileSize: f.TotalFileSize,
		usage:         f.used(),
	}, nil
}

// Root returns the root path of the underlying filesystem
func (f *LimitedFs) Root() string {
	return f.Fs.Root()
}

// Capabilities reports the capabilities of the underlying filesystem
func (f *LimitedFs) Capabilities() billy.Capability {
	return billy.Capabilities(f.Fs)
}

// limitedFile counts bytes written against the owning LimitedFs
type limitedFile struct {
	billy.File
	fs *LimitedFs
}

func (lf *limitedFile) Write(p []byte) (int, error) {
	if err := lf.fs.reserveBytes(len(p)); err != nil {
		return 0, err
	}
	return lf.File.Write(p)
}
