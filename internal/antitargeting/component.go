package antitargeting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrComponentNotFound is returned when no payload exists for a component.
var ErrComponentNotFound = errors.New("component not found")

// ComponentReader fetches the raw payload of a component-updater resource.
type ComponentReader interface {
	ReadComponent(ctx context.Context, id, manifestVersion string) ([]byte, error)
}

// FileComponentReader reads <Dir>/<manifest version>/<id>.json, falling back
// to <Dir>/<id>.json when no versioned copy exists.
type FileComponentReader struct {
	Dir string
}

// ReadComponent implements ComponentReader.
func (f FileComponentReader) ReadComponent(ctx context.Context, id, manifestVersion string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" || filepath.Base(id) != id {
		return nil, fmt.Errorf("invalid component id %q", id)
	}

	var candidates []string
	if manifestVersion != "" && filepath.Base(manifestVersion) == manifestVersion {
		candidates = append(candidates, filepath.Join(f.Dir, manifestVersion, id+".json"))
	}
	candidates = append(candidates, filepath.Join(f.Dir, id+".json"))

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, id)
}
