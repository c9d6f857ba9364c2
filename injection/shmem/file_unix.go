// SPDX-License-Identifier: Apache-2.0

//go:build unix

package shmem

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// typecheck interface compliance
var _ Provider = (*FileProvider)(nil)

// DefaultDir is where FileProvider keeps its segments unless told otherwise.
const DefaultDir = "/dev/shm"

const (
	headerSize   = 64
	segmentMagic = uint64(0x494e4a5054534547) // "INJPTSEG"
)

// Segment file layout:
//
// <<<< offset 0
// fileHeader (magic, size), padded to headerSize
// <<<< offset headerSize
// segment data (size bytes)
type fileHeader struct {
	magic uint64
	size  uint64
}

// FileProvider maps segments from files in a directory, normally a tmpfs
// such as /dev/shm, so that separate processes share them. Creation and
// initialization are serialized with an exclusive flock on the file.
type FileProvider struct {
	dir string
}

// NewFileProvider returns a provider rooted at dir, or DefaultDir when dir
// is empty. The directory must exist.
func NewFileProvider(dir string) (*FileProvider, error) {
	if dir == "" {
		dir = DefaultDir
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("shmem: %s is not a directory", dir)
	}
	return &FileProvider{dir: dir}, nil
}

// Dir returns the directory holding the segment files.
func (p *FileProvider) Dir() string {
	return p.dir
}

func (p *FileProvider) GetOrCreate(name string, size uintptr, init InitFunc) (*Segment, bool, error) {
	if !validName(name) {
		return nil, false, ErrInvalidName
	}
	if size == 0 {
		return nil, false, ErrInvalidSize
	}

	path := filepath.Join(p.dir, name)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	fd := int(file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return nil, false, fmt.Errorf("shmem: lock %s: %w", path, err)
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, false, err
	}

	total := int64(headerSize + size)
	switch stat.Size {
	case 0:
		if err := unix.Ftruncate(fd, total); err != nil {
			return nil, false, fmt.Errorf("shmem: resize %s: %w", path, err)
		}
	case total:
	default:
		return nil, true, ErrSizeMismatch
	}

	mem, err := unix.Mmap(fd, 0, int(total), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, false, fmt.Errorf("shmem: map %s: %w", path, err)
	}

	header := (*fileHeader)(unsafe.Pointer(&mem[0]))
	data := unsafe.Pointer(&mem[headerSize])

	found := atomic.LoadUint64(&header.magic) == segmentMagic
	if !found {
		// Either a new file, or a creator died half way: the flock
		// guarantees nobody else is initializing right now.
		for i := range mem {
			mem[i] = 0
		}
		header.size = uint64(size)
		if init != nil {
			init(data)
		}
		atomic.StoreUint64(&header.magic, segmentMagic)
		log.WithField("segment", path).WithField("size", size).Debug("Created shared segment")
	} else if header.size != uint64(size) {
		unix.Munmap(mem)
		return nil, true, ErrSizeMismatch
	}

	return &Segment{
		name:  name,
		size:  size,
		addr:  data,
		close: func() error { return unix.Munmap(mem) },
	}, found, nil
}

// Remove unlinks the file backing the named segment. Processes that already
// mapped it keep their mapping.
func (p *FileProvider) Remove(name string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(p.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
