package checkpoint

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/plotconv/pkg/shuffle"
)

// MetadataVersion is the current checkpoint format version.
const MetadataVersion = 1

// Sentinel errors for checkpoint validation.
var (
	ErrPathMismatch   = fmt.Errorf("%w: plot path differs", shuffle.ErrResumeMismatch)
	ErrFactorMismatch = fmt.Errorf("%w: partition factor differs", shuffle.ErrResumeMismatch)
	ErrModeMismatch   = fmt.Errorf("%w: conversion mode differs", shuffle.ErrResumeMismatch)
	ErrInvalidRecord  = errors.New("invalid checkpoint record")
)

// DefaultMaxAge is how long a stored checkpoint stays usable.
const DefaultMaxAge = 30 * 24 * time.Hour

const (
	dirPerm      = 0o750
	filePerm     = 0o600
	metadataFile = "checkpoint.json"
)

//go:embed schema.json
var recordSchema []byte

// DefaultDir returns the default checkpoint directory (~/.plotconv/checkpoints).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".plotconv", "checkpoints")
}

// PlotHash computes a short hash of the plot path for use as directory name.
func PlotHash(plotPath string) string {
	h := sha256.Sum256([]byte(plotPath))

	return hex.EncodeToString(h[:8])
}

// Manager stores the checkpoint of one plot file.
type Manager struct {
	BaseDir  string
	PlotPath string
	PlotHash string
	MaxAge   time.Duration
}

// NewManager creates a manager for the plot at plotPath. The path is made
// absolute so relative and absolute invocations share a checkpoint.
func NewManager(baseDir, plotPath string) (*Manager, error) {
	abs, err := filepath.Abs(plotPath)
	if err != nil {
		return nil, fmt.Errorf("resolve plot path: %w", err)
	}

	return &Manager{
		BaseDir:  baseDir,
		PlotPath: abs,
		PlotHash: PlotHash(abs),
		MaxAge:   DefaultMaxAge,
	}, nil
}

// CheckpointDir returns the directory for this plot's checkpoint.
func (m *Manager) CheckpointDir() string {
	return filepath.Join(m.BaseDir, m.PlotHash)
}

// MetadataPath returns the path to the record file.
func (m *Manager) MetadataPath() string {
	return filepath.Join(m.CheckpointDir(), metadataFile)
}

// Exists reports whether a record is stored.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.MetadataPath())

	return err == nil
}

// Clear removes the stored record, if any.
func (m *Manager) Clear() error {
	err := os.RemoveAll(m.CheckpointDir())
	if err != nil {
		return fmt.Errorf("remove checkpoint dir: %w", err)
	}

	return nil
}

// Save stores rec for this plot, filling in version, path and timestamp.
func (m *Manager) Save(rec Record) error {
	rec.Version = MetadataVersion
	rec.Path = m.PlotPath
	rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	err = os.MkdirAll(m.CheckpointDir(), dirPerm)
	if err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	// Records are replaced atomically.
	tmp := m.MetadataPath() + ".tmp"

	err = os.WriteFile(tmp, data, filePerm)
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}

	err = os.Rename(tmp, m.MetadataPath())
	if err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}

	return nil
}

// Load reads the stored record and checks it against the record schema.
func (m *Manager) Load() (*Record, error) {
	data, err := os.ReadFile(m.MetadataPath())
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(recordSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(msgs, "; "))
	}

	var rec Record

	err = json.Unmarshal(data, &rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	return &rec, nil
}

// Validate checks that rec can resume a conversion of this plot in mode
// with the given partition factor.
func (m *Manager) Validate(rec *Record, mode string, factor int) error {
	if rec.Path != m.PlotPath {
		return fmt.Errorf("%w: checkpoint has %q, got %q", ErrPathMismatch, rec.Path, m.PlotPath)
	}

	if rec.Mode != mode {
		return fmt.Errorf("%w: checkpoint has %s, got %s", ErrModeMismatch, rec.Mode, mode)
	}

	if rec.Factor != factor {
		return fmt.Errorf("%w: checkpoint has %d, got %d", ErrFactorMismatch, rec.Factor, factor)
	}

	return nil
}

// Expired reports whether rec is older than MaxAge. Records with an
// unparsable timestamp are treated as expired.
func (m *Manager) Expired(rec *Record) bool {
	created, err := time.Parse(time.RFC3339, rec.CreatedAt)
	if err != nil {
		return true
	}

	return m.MaxAge > 0 && time.Since(created) > m.MaxAge
}
