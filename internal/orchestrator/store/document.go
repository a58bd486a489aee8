package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SchemaVersion is the on-disk envelope version written by this build.
const SchemaVersion = 1

// ErrUnsupportedSchema is returned for documents written by a newer build.
var ErrUnsupportedSchema = errors.New("unsupported schema version")

// envelope wraps every document written to the data directory.
type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Data          json.RawMessage `json:"data"`
}

// Documents reads and writes the JSON documents of a data directory.
// All writes go through one lock and replace the file atomically.
type Documents struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewDocuments returns a Documents rooted at dir.
func NewDocuments(dir string) *Documents {
	return &Documents{dir: dir, now: time.Now}
}

// Dir returns the data directory.
func (d *Documents) Dir() string {
	return d.dir
}

// Path returns the absolute location of a document.
func (d *Documents) Path(name string) string {
	return filepath.Join(d.dir, name)
}

// Read decodes the payload of name into v and returns its schema version.
// A missing or empty file leaves v untouched. Files without an envelope are
// read as version 0.
func (d *Documents) Read(name string, v any) (int, error) {
	data, err := os.ReadFile(d.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return SchemaVersion, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}

	payload, version, err := unwrap(data)
	if err != nil {
		return version, fmt.Errorf("decode %s: %w", name, err)
	}
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return version, nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return version, fmt.Errorf("decode %s: %w", name, err)
	}
	return version, nil
}

// Write replaces name with v wrapped in the current envelope.
func (d *Documents) Write(name string, v any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(name, v)
}

// Update reads name into v, applies fn and writes v back while holding the
// write lock. Nothing is written when fn fails.
func (d *Documents) Update(name string, v any, fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.Read(name, v); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return d.write(name, v)
}

func (d *Documents) write(name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	out, err := json.MarshalIndent(envelope{
		SchemaVersion: SchemaVersion,
		UpdatedAt:     d.now().UTC(),
		Data:          payload,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(d.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmpName, d.Path(name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// unwrap splits an envelope into its payload and version. Anything that is
// not an envelope is returned as a version 0 payload.
func unwrap(data []byte) (json.RawMessage, int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, 0, nil
	}
	if trimmed[0] != '{' {
		return trimmed, 0, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, 0, err
	}
	rawVersion, hasVersion := probe["schema_version"]
	rawData, hasData := probe["data"]
	if !hasVersion || !hasData {
		return trimmed, 0, nil
	}

	var version int
	if err := json.Unmarshal(rawVersion, &version); err != nil {
		return nil, 0, fmt.Errorf("schema_version: %w", err)
	}
	if version > SchemaVersion {
		return nil, version, fmt.Errorf("%w: %d", ErrUnsupportedSchema, version)
	}
	return rawData, version, nil
}
