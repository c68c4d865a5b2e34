// Package hashdb implements the content-addressed block-hash database
// core: settings, the five persistent stores, the import and scan
// manager façades, and the binary stream scanner's query hooks.
package hashdb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/5l1v3r1/hashdb/internal/hashdata"
	"github.com/5l1v3r1/hashdb/internal/hashstore"
	"github.com/5l1v3r1/hashdb/internal/sourcedata"
	"github.com/5l1v3r1/hashdb/internal/sourceid"
	"github.com/5l1v3r1/hashdb/internal/sourcename"
	"github.com/5l1v3r1/hashdb/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	settingsFileName = "settings.json"
	historyFileName  = "history.log"

	sourceNameDir = "sourcename"
	sourceDataDir = "sourcedata"
	sourceIDDir   = "sourceid"
	hashDataDir   = "hashdata"
	hashStoreDir  = "hashstore"
)

// Database is one opened hashdb directory: its settings plus handles
// on the five persistent stores. It is the shared substrate the
// ImportManager and ScanManager façades are built on.
type Database struct {
	Path     string
	Settings Settings
	mode     store.Mode
	log      *logrus.Logger

	sourceName *sourcename.Store
	sourceData *sourcedata.Store
	sourceID   *sourceid.Store
	hashData   *hashdata.Store
	hashStore  *hashstore.Store
}

// Create makes a new, empty database directory at path with the given
// settings. path must not already exist.
func Create(path string, settings Settings) error {
	if settings.SettingsVersion == 0 {
		settings = DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("path %s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking path %s: %w", path, err)
	}

	if err := os.Mkdir(path, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", path, err)
	}

	raw, err := MarshalSettings(settings)
	if err != nil {
		_ = os.RemoveAll(path)
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, settingsFileName), raw, 0o644); err != nil {
		_ = os.RemoveAll(path)
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, historyFileName), nil, 0o644); err != nil {
		_ = os.RemoveAll(path)
		return fmt.Errorf("writing history log: %w", err)
	}

	db, err := openStores(path, settings, store.ReadWrite, logrus.StandardLogger())
	if err != nil {
		_ = os.RemoveAll(path)
		return fmt.Errorf("initializing stores: %w", err)
	}
	return db.Close()
}

// Open opens an existing database directory. mode == store.ReadWrite
// takes the exclusive write lease; a second concurrent ReadWrite open
// fails.
func Open(path string, mode store.Mode) (*Database, error) {
	return OpenWithLogger(path, mode, logrus.StandardLogger())
}

// OpenWithLogger is Open with an explicit logrus.Logger for structural
// events (truncation warnings, write-lease acquisition).
func OpenWithLogger(path string, mode store.Mode, log *logrus.Logger) (*Database, error) {
	raw, err := os.ReadFile(filepath.Join(path, settingsFileName))
	if err != nil {
		return nil, fmt.Errorf("reading settings for %s: %w", path, err)
	}
	settings, err := UnmarshalSettings(raw)
	if err != nil {
		return nil, err
	}
	if settings.SettingsVersion != SettingsVersion {
		return nil, fmt.Errorf("schema mismatch: database is version %d, binary supports %d", settings.SettingsVersion, SettingsVersion)
	}

	return openStores(path, settings, mode, log)
}

func openStores(path string, settings Settings, mode store.Mode, log *logrus.Logger) (*Database, error) {
	db := &Database{Path: path, Settings: settings, mode: mode, log: log}

	var err error
	if db.sourceName, err = sourcename.Open(filepath.Join(path, sourceNameDir), mode); err != nil {
		return nil, err
	}
	if db.sourceData, err = sourcedata.Open(filepath.Join(path, sourceDataDir), mode); err != nil {
		db.Close()
		return nil, err
	}
	if db.sourceID, err = sourceid.Open(filepath.Join(path, sourceIDDir), mode); err != nil {
		db.Close()
		return nil, err
	}
	if db.hashData, err = hashdata.Open(filepath.Join(path, hashDataDir), mode); err != nil {
		db.Close()
		return nil, err
	}
	if db.hashStore, err = hashstore.Open(filepath.Join(path, hashStoreDir), mode); err != nil {
		db.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{"path": path, "mode": modeName(mode)}).Debug("hashdb: opened database")
	return db, nil
}

func modeName(mode store.Mode) string {
	if mode == store.ReadWrite {
		return "read-write"
	}
	return "read-only"
}

// Close drops every owned store handle. Safe to call on a partially
// opened Database.
func (db *Database) Close() error {
	var firstErr error
	for _, closer := range []func() error{
		safeClose(db.sourceName),
		safeCloseSD(db.sourceData),
		safeCloseSI(db.sourceID),
		safeCloseHD(db.hashData),
		safeCloseHS(db.hashStore),
	} {
		if closer == nil {
			continue
		}
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AppendHistory appends one timestamp-free command-line entry, the
// minimal carry-over of the original's per-session logger (see
// SPEC_FULL.md "Supplemented features").
func (db *Database) AppendHistory(commandLine string) error {
	f, err := os.OpenFile(filepath.Join(db.Path, historyFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	defer f.Close()
	_, err = f.WriteString(commandLine + "\n")
	return err
}

// History returns every recorded command line, in append order.
func (db *Database) History() ([]string, error) {
	raw, err := os.ReadFile(filepath.Join(db.Path, historyFileName))
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return splitNonEmptyLines(string(raw)), nil
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func safeClose(s *sourcename.Store) func() error {
	if s == nil {
		return nil
	}
	return s.Close
}
func safeCloseSD(s *sourcedata.Store) func() error {
	if s == nil {
		return nil
	}
	return s.Close
}
func safeCloseSI(s *sourceid.Store) func() error {
	if s == nil {
		return nil
	}
	return s.Close
}
func safeCloseHD(s *hashdata.Store) func() error {
	if s == nil {
		return nil
	}
	return s.Close
}
func safeCloseHS(s *hashstore.Store) func() error {
	if s == nil {
		return nil
	}
	return s.Close
}
