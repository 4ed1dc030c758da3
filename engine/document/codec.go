package document

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"gopkg.in/yaml.v3"
)

// binaryMagic starts every binary document.
var binaryMagic = []byte("OXYG\x01")

// ErrBadDocument is returned when a binary document is truncated or corrupt.
var ErrBadDocument = errors.New("document: malformed binary document")

// MarshalYAML encodes doc as a YAML document.
func MarshalYAML(doc GraphDocument) ([]byte, error) {
	return yaml.Marshal(doc)
}

// UnmarshalYAML decodes a YAML document.
func UnmarshalYAML(data []byte) (GraphDocument, error) {
	var doc GraphDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return GraphDocument{}, fmt.Errorf("document: parse yaml: %w", err)
	}
	return doc, nil
}

// MarshalBinary encodes doc with gob and compresses it with snappy.
func MarshalBinary(doc GraphDocument) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("document: encode: %w", err)
	}
	compressed := snappy.Encode(nil, buf.Bytes())
	return append(append(make([]byte, 0, len(binaryMagic)+len(compressed)), binaryMagic...), compressed...), nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func UnmarshalBinary(data []byte) (GraphDocument, error) {
	if !IsBinary(data) {
		return GraphDocument{}, ErrBadDocument
	}
	raw, err := snappy.Decode(nil, data[len(binaryMagic):])
	if err != nil {
		return GraphDocument{}, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	var doc GraphDocument
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&doc); err != nil {
		return GraphDocument{}, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	return doc, nil
}

// IsBinary reports whether data starts like a binary document.
func IsBinary(data []byte) bool {
	return bytes.HasPrefix(data, binaryMagic)
}

// Decode detects the form of data and decodes it.
func Decode(data []byte) (GraphDocument, error) {
	if IsBinary(data) {
		return UnmarshalBinary(data)
	}
	return UnmarshalYAML(data)
}

// Load reads a document in either form.
func Load(path string) (GraphDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GraphDocument{}, fmt.Errorf("document: read %s: %w", path, err)
	}
	return Decode(data)
}

// Save writes doc as YAML when path ends in .yaml or .yml and in binary form otherwise.
func Save(path string, doc GraphDocument) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = MarshalYAML(doc)
	default:
		data, err = MarshalBinary(doc)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("document: write %s: %w", path, err)
	}
	return nil
}
