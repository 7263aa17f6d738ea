package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// documentExts are tried in order when resolving a workflow id to a file.
var documentExts = []string{".yaml", ".yml", ".json"}

// FileProvider reads graph documents from <dir>/<workflow id>.<ext>.
// YAML and JSON documents share the same field names.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a FileProvider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// Load reads and decodes the document of workflowID. A document without an
// id takes the id it was requested under.
func (p *FileProvider) Load(ctx context.Context, workflowID string) (*schema.GraphDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if workflowID == "" || strings.ContainsAny(workflowID, `/\`) || workflowID != filepath.Clean(workflowID) {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid workflow id %q", workflowID)
	}

	for _, ext := range documentExts {
		path := filepath.Join(p.dir, workflowID+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeProvider, "read %s", path).WithCause(err)
		}

		doc, err := DecodeDocument(data, ext)
		if err != nil {
			return nil, err
		}
		if doc.ID == "" {
			doc.ID = workflowID
		}
		return doc, nil
	}
	return nil, notFound(workflowID)
}

// List returns the workflow ids of all documents in the directory, sorted.
func (p *FileProvider) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "list %s", p.dir).WithCause(err)
	}

	seen := map[string]bool{}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !slices.Contains(documentExts, ext) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ext)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DecodeDocument decodes a YAML or JSON graph document. ext selects the
// format; anything but ".json" is read as YAML.
func DecodeDocument(data []byte, ext string) (*schema.GraphDocument, error) {
	var doc schema.GraphDocument
	var err error
	if ext == ".json" {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, fmt.Sprintf("decode %s document", strings.TrimPrefix(ext, "."))).WithCause(err)
	}
	return &doc, nil
}

var (
	_ Provider = (*FileProvider)(nil)
	_ Lister   = (*FileProvider)(nil)
)
