package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alan-christopher/bb84sim/bb84"
)

// Snapshot file formats, chosen by file extension.
const (
	FormatJSON  = ".json"
	FormatProto = ".pb"
)

// FormatOf returns the snapshot format implied by path's extension. Paths
// without a recognized extension are JSON.
func FormatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), FormatProto) {
		return FormatProto
	}
	return FormatJSON
}

// Marshal encodes snap in format.
func Marshal(snap bb84.Snapshot, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(snap, "", "  ")
	case FormatProto:
		var buf bytes.Buffer
		if err := EncodeProto(&buf, snap); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown snapshot format %q", format)
}

// Unmarshal decodes a snapshot in format.
func Unmarshal(data []byte, format string) (bb84.Snapshot, error) {
	switch format {
	case FormatJSON:
		return bb84.ParseSnapshot(data)
	case FormatProto:
		snap, _, err := DecodeProto(bytes.NewReader(data))
		return snap, err
	}
	return bb84.Snapshot{}, fmt.Errorf("unknown snapshot format %q", format)
}

// WriteFile saves snap to path, replacing any existing file only once the new
// contents are fully written.
func WriteFile(path string, snap bb84.Snapshot) error {
	data, err := Marshal(snap, FormatOf(path))
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

// ReadFile loads a snapshot saved by WriteFile.
func ReadFile(path string) (bb84.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bb84.Snapshot{}, err
	}
	snap, err := Unmarshal(data, FormatOf(path))
	if err != nil {
		return bb84.Snapshot{}, fmt.Errorf("loading %s: %w", path, err)
	}
	return snap, nil
}
