package schema

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/datastack/internal/ir"
)

// CompileCUE compiles CUE model source into a model.
//
// The source declares one struct per entity under the top-level "entity"
// field:
//
//	entity: Person: {
//		name:      string
//		birthDate: "time"
//	}
//
// filename is used for error positions only.
func CompileCUE(name, filename string, src []byte) (*ir.Model, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileValue(name, v)
}

// CompileValue parses a built CUE value into a model.
func CompileValue(name string, v cue.Value) (*ir.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{
			Field:   "entity",
			Message: "at least one entity is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	model := &ir.Model{Name: name}
	for iter.Next() {
		entity, err := compileEntity(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		model.Entities = append(model.Entities, *entity)
	}

	if len(model.Entities) == 0 {
		return nil, &CompileError{
			Field:   "entity",
			Message: "at least one entity is required",
			Pos:     entitiesVal.Pos(),
		}
	}

	sort.Slice(model.Entities, func(i, j int) bool {
		return model.Entities[i].Name < model.Entities[j].Name
	})

	if err := model.Validate(); err != nil {
		return nil, &CompileError{Field: "model", Message: err.Error(), Pos: v.Pos()}
	}
	return model, nil
}

func compileEntity(name string, v cue.Value) (*ir.EntitySchema, error) {
	entity := &ir.EntitySchema{
		Name:       name,
		Attributes: make(map[string]ir.AttributeType),
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		attrType, err := extractAttributeType(iter.Value())
		if err != nil {
			return nil, err
		}
		entity.Attributes[iter.Label()] = attrType
	}

	if len(entity.Attributes) == 0 {
		return nil, &CompileError{
			Field:   "entity." + name,
			Message: "entity must declare at least one attribute",
			Pos:     v.Pos(),
		}
	}
	return entity, nil
}

// extractAttributeType converts a CUE type to an attribute type. A concrete
// string names the type explicitly, which is the only way to declare "time".
func extractAttributeType(v cue.Value) (ir.AttributeType, error) {
	if v.IncompleteKind() == cue.StringKind && v.IsConcrete() {
		s, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		t := ir.AttributeType(s)
		if s == "number" {
			t = ir.TypeFloat
		}
		if !ir.ValidAttributeTypes[t] {
			return "", &CompileError{
				Field:   "type",
				Message: fmt.Sprintf("unknown attribute type %q", s),
				Pos:     v.Pos(),
			}
		}
		return t, nil
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.TypeString, nil
	case cue.IntKind:
		return ir.TypeInt, nil
	case cue.FloatKind, cue.NumberKind:
		return ir.TypeFloat, nil
	case cue.BoolKind:
		return ir.TypeBool, nil
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Line    int // YAML sources have no token.Pos
	File    string
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
