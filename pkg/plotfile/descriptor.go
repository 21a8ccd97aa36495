package plotfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sentinel errors for plot file handling.
var (
	// ErrFormat indicates a file name that is not "Id_Offset_NonceCount_Stagger".
	ErrFormat = errors.New("invalid plot file name")

	// ErrGeometry indicates a plot whose declared geometry cannot be converted.
	ErrGeometry = errors.New("invalid plot geometry")
)

const (
	nameSeparator = "_"
	nameFields    = 4
)

// Name is the identity encoded in an unoptimized plot file name.
type Name struct {
	ID         uint64
	Offset     int64
	NonceCount int64
	Stagger    int64
}

// Parse parses "Id_Offset_NonceCount_Stagger".
func Parse(name string) (Name, error) {
	parts := strings.Split(name, nameSeparator)
	if len(parts) != nameFields {
		return Name{}, fmt.Errorf("%w: %s has %d fields, want %d", ErrFormat, name, len(parts), nameFields)
	}

	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Name{}, fmt.Errorf("%w: %s: id %q", ErrFormat, name, parts[0])
	}

	signed := make([]int64, 0, nameFields-1)

	for i, label := range []string{"offset", "nonce count", "stagger"} {
		v, parseErr := strconv.ParseInt(parts[i+1], 10, 64)
		if parseErr != nil || v < 0 {
			return Name{}, fmt.Errorf("%w: %s: %s %q", ErrFormat, name, label, parts[i+1])
		}

		signed = append(signed, v)
	}

	return Name{ID: id, Offset: signed[0], NonceCount: signed[1], Stagger: signed[2]}, nil
}

// UnoptimizedName returns "Id_Offset_NonceCount_Stagger".
func (n Name) UnoptimizedName() string {
	return fmt.Sprintf("%d_%d_%d_%d", n.ID, n.Offset, n.NonceCount, n.Stagger)
}

// OptimizedName returns "Id_Offset_NonceCount"; the stagger is implicitly NonceCount.
func (n Name) OptimizedName() string {
	return fmt.Sprintf("%d_%d_%d", n.ID, n.Offset, n.NonceCount)
}

// ExpectedSize is the file length implied by the nonce count.
func (n Name) ExpectedSize() int64 {
	return n.NonceCount * NonceSize
}

// BlockSize is the size of one scoop block: one scoop of every nonce.
func (n Name) BlockSize() int64 {
	return n.NonceCount * ScoopSize
}

// Descriptor is a plot file on disk. It is created once per run and is
// immutable apart from Rename.
type Descriptor struct {
	Name

	Path     string
	RealSize int64
}

// Open parses the base name of path and records the current file size.
func Open(path string) (*Descriptor, error) {
	name, err := Parse(filepath.Base(path))
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat plot file: %w", err)
	}

	return &Descriptor{Name: name, Path: path, RealSize: info.Size()}, nil
}

// Validate checks that the plot can be converted: it must be consolidated
// into a single stagger group and have exactly the declared size.
func (d *Descriptor) Validate() error {
	if d.NonceCount == 0 {
		return fmt.Errorf("%w: %s has no nonces", ErrGeometry, filepath.Base(d.Path))
	}

	if d.Stagger != d.NonceCount {
		return fmt.Errorf("%w: %s has stagger %d, want %d (not consolidated)",
			ErrGeometry, filepath.Base(d.Path), d.Stagger, d.NonceCount)
	}

	if d.RealSize != d.ExpectedSize() {
		return fmt.Errorf("%w: %s is %d bytes, want %d",
			ErrGeometry, filepath.Base(d.Path), d.RealSize, d.ExpectedSize())
	}

	return nil
}

// Rename moves the file to newName within its directory.
func (d *Descriptor) Rename(newName string) error {
	target := filepath.Join(filepath.Dir(d.Path), newName)

	err := os.Rename(d.Path, target)
	if err != nil {
		return fmt.Errorf("rename plot file: %w", err)
	}

	d.Path = target

	return nil
}
