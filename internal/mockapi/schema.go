package mockapi

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*gojsonschema.Schema{}
)

// loadSchema compiles the embedded schema name once.
func loadSchema(name string) (*gojsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[name]; ok {
		return s, nil
	}
	raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	schemaCache[name] = s
	return s, nil
}

// validate checks payload against the named schema and converts failures
// into a *ValidationError.
func validate(schema, entity string, payload any) error {
	s, err := loadSchema(schema)
	if err != nil {
		return err
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("validate %s: %w", entity, err)
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{Entity: entity}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" || field == "" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			} else {
				field = strings.TrimPrefix(desc.Context().String(), "(root).")
			}
		}
		verr.Fields = append(verr.Fields, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}
