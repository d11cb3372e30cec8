package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrSchemaNotRegistered = errors.New("core: module schema not registered")

// ModuleSchemaRegistry compiles and holds one JSON schema per module key.
// Submission validates the config document against the registered schema and
// records the schema ref the document validated against.
type ModuleSchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]*compiledSchema
}

type compiledSchema struct {
	ref    string
	schema *jsonschema.Schema
}

func NewModuleSchemaRegistry() *ModuleSchemaRegistry {
	return &ModuleSchemaRegistry{schemas: make(map[string]*compiledSchema)}
}

// Register compiles schemaJSON and binds it to moduleKey. Re-registering a
// module key is an error; schema evolution goes through a new registry.
func (r *ModuleSchemaRegistry) Register(moduleKey string, schemaJSON []byte) error {
	if r == nil {
		return fmt.Errorf("core: schema registry is nil")
	}
	key := strings.TrimSpace(moduleKey)
	if key == "" {
		return fmt.Errorf("core: module key is required")
	}
	ref := fmt.Sprintf("tenancy://modules/%s/config.schema.json", key)

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(ref, bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("core: add schema resource for %q: %w", key, err)
	}
	schema, err := compiler.Compile(ref)
	if err != nil {
		return fmt.Errorf("core: compile schema for %q: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[key]; exists {
		return fmt.Errorf("core: module schema already registered: %s", key)
	}
	r.schemas[key] = &compiledSchema{ref: ref, schema: schema}
	return nil
}

func (r *ModuleSchemaRegistry) Validate(_ context.Context, moduleKey string, document json.RawMessage) (string, error) {
	if r == nil {
		return "", fmt.Errorf("core: schema registry is nil")
	}
	key := strings.TrimSpace(moduleKey)
	r.mu.RLock()
	compiled, ok := r.schemas[key]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSchemaNotRegistered, key)
	}

	var value any
	if err := json.Unmarshal(document, &value); err != nil {
		return "", fmt.Errorf("%w: malformed document: %v", ErrValidation, err)
	}
	if err := compiled.schema.Validate(value); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return compiled.ref, nil
}

// Get returns the schema ref bound to moduleKey.
func (r *ModuleSchemaRegistry) Get(moduleKey string) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	compiled, ok := r.schemas[strings.TrimSpace(moduleKey)]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return compiled.ref, true
}

func (r *ModuleSchemaRegistry) List() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	keys := make([]string, 0, len(r.schemas))
	for key := range r.schemas {
		keys = append(keys, key)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

var _ SchemaRegistry = (*ModuleSchemaRegistry)(nil)
