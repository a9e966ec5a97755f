package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource []byte

// ParseSeed validates a CUE catalog document against the seed schema and
// decodes it. The returned catalog passes Check.
func ParseSeed(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile seed schema: %w", err)
	}
	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %s", filename, errors.Details(err, nil))
	}

	v := schema.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate %s: %s", filename, errors.Details(err, nil))
	}

	var c Catalog
	if err := v.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	if err := c.Check(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &c, nil
}

// LoadSeed reads and parses the catalog file at path.
func LoadSeed(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseSeed(path, src)
}
