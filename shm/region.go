// Package shm implements the shared-memory topic transport: a fixed-size
// memory-mapped Region per topic, and the Hub (MPMC) and Link (SPSC) ring
// patterns layered on top of it.
package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/horus-robotics/horus-go/internal/telemetry"
	"github.com/horus-robotics/horus-go/platform"
)

var regionLog = telemetry.Component("shm.region")

// Region is a fixed-size memory-mapped file shared by every process that
// opens the same topic name. The first opener is the owner and
// zero-initializes the region; later openers attach to the existing
// mapping. A Region never shrinks: opening with a smaller requested size
// than the file already has keeps the larger existing size.
type Region struct {
	file  *os.File
	data  []byte
	size  int64
	owner bool
	path  string
}

// OpenOrCreate maps `name` at `size` bytes, creating and zero-initializing
// the backing file if it does not already exist. If it exists but is
// smaller than `size`, the file is grown (never shrunk) and the grown
// bytes are zeroed; an existing file already at least `size` bytes is
// mapped as-is, unmodified, with the caller accepting its current size.
func OpenOrCreate(name string, size int64) (*Region, error) {
	if err := platform.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("shm: ensure dirs for %q: %w", name, err)
	}
	return OpenOrCreateAt(platform.TopicFilePath(name), size)
}

// OpenOrCreateAt is the path-addressed counterpart to OpenOrCreate, used
// by callers (the log ring) whose layout under the
// platform root doesn't follow the topics/horus_<name> convention.
func OpenOrCreateAt(path string, size int64) (*Region, error) {
	_, statErr := os.Stat(path)
	existed := statErr == nil

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shm: open %q: %w", path, err)
	}

	owner := !existed
	mapSize := size
	if existed {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("shm: stat %q: %w", path, err)
		}
		if info.Size() > size {
			mapSize = info.Size()
		} else if info.Size() < size {
			regionLog.Info().Str("path", path).Int64("from", info.Size()).Int64("to", size).Msg("growing region")
		}
	}
	if err := f.Truncate(mapSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: truncate %q: %w", path, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(mapSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %q: %w", path, err)
	}
	if owner {
		for i := range data {
			data[i] = 0
		}
	}

	regionLog.Debug().Str("path", path).Bool("owner", owner).Int64("size", mapSize).Msg("region mapped")
	return &Region{file: f, data: data, size: mapSize, owner: owner, path: path}, nil
}

// OpenExisting maps an already-existing topic file at its current size,
// failing with ErrRegionMissing if it is absent.
func OpenExisting(name string) (*Region, error) {
	path := platform.TopicFilePath(name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("shm: open existing %q: %w", name, ErrRegionMissing)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shm: open %q: %w", name, err)
	}

	size := info.Size()
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %q: %w", name, err)
	}

	return &Region{file: f, data: data, size: size, owner: false, path: path}, nil
}

// Bytes exposes the raw mapped region. Callers overlay the ring header
// and slot structs on top of this slice via unsafe.Pointer.
func (r *Region) Bytes() []byte { return r.data }

// Size is the mapped region size in bytes.
func (r *Region) Size() int64 { return r.size }

// IsOwner reports whether this process created (and zero-initialized)
// the backing file.
func (r *Region) IsOwner() bool { return r.owner }

// Path is the backing file's filesystem path.
func (r *Region) Path() string { return r.path }

// Close unmaps the region and closes the file descriptor. The backing
// file is never deleted — topic files persist across process restarts
// by design; cleanup is an operator concern.
func (r *Region) Close() error {
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			return fmt.Errorf("shm: munmap %q: %w", r.path, err)
		}
		r.data = nil
	}
	return r.file.Close()
}
