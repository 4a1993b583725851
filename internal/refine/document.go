package refine

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"sjsage522/immunescraper/internal/model"
	scrapeerrors "sjsage522/immunescraper/pkg/errors"
)

// DecodeDocument parses an instances document. A legacy document with
// top-level raids and dungeons is wrapped under instances; wrapped reports
// whether that happened.
func DecodeDocument(data []byte) (doc *model.Document, wrapped bool, err error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false, err
	}

	doc = &model.Document{}
	if _, ok := probe["instances"]; ok {
		err = json.Unmarshal(data, doc)
	} else {
		wrapped = true
		err = json.Unmarshal(data, &doc.Instances)
	}
	if err != nil {
		return nil, false, err
	}

	for _, kind := range model.Kinds {
		for _, inst := range doc.Group(kind) {
			if inst != nil && inst.Npcs == nil {
				inst.Npcs = []*model.Npc{}
			}
		}
	}
	return doc, wrapped, nil
}

// LoadDocument reads and decodes the document at path. A missing or
// unreadable file is an input error.
func LoadDocument(path string) (*model.Document, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, scrapeerrors.NewInput(path, "input file not found", err)
	}
	if err != nil {
		return nil, false, scrapeerrors.NewInput(path, "failed to read input file", err)
	}

	doc, wrapped, err := DecodeDocument(data)
	if err != nil {
		return nil, false, scrapeerrors.NewInput(path, "malformed instances document", err)
	}
	return doc, wrapped, nil
}

// EncodeDocument renders doc with 4-space indentation and without HTML escaping
func EncodeDocument(doc *model.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDocument replaces path with doc in one step: the content goes to a
// temporary file in the same directory which is then renamed over path.
func WriteDocument(path string, doc *model.Document) error {
	data, err := EncodeDocument(doc)
	if err != nil {
		return scrapeerrors.NewStorage(path, "failed to encode document", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return scrapeerrors.NewStorage(path, "failed to create temporary file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return scrapeerrors.NewStorage(path, "failed to write temporary file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return scrapeerrors.NewStorage(path, "failed to sync temporary file", err)
	}
	if err := tmp.Close(); err != nil {
		return scrapeerrors.NewStorage(path, "failed to close temporary file", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return scrapeerrors.NewStorage(path, "failed to set file mode", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return scrapeerrors.NewStorage(path, "failed to replace output file", err)
	}
	return nil
}
