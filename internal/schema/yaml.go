package schema

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/datastack/internal/ir"
)

// CompileYAML compiles a YAML model:
//
//	entities:
//	  Person:
//	    name: string
//	    birthDate: time
//
// The document is walked as a yaml.Node tree so errors carry line numbers.
func CompileYAML(name, filename string, src []byte) (*ir.Model, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	if len(doc.Content) == 0 {
		return nil, &CompileError{Field: "entities", Message: "at least one entity is required", File: filename}
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, yamlError(filename, root, "model", "top level must be a mapping")
	}

	entities := mappingValue(root, "entities")
	if entities == nil {
		return nil, yamlError(filename, root, "entities", "at least one entity is required")
	}
	if entities.Kind != yaml.MappingNode || len(entities.Content) == 0 {
		return nil, yamlError(filename, entities, "entities", "at least one entity is required")
	}

	model := &ir.Model{Name: name}
	for i := 0; i+1 < len(entities.Content); i += 2 {
		keyNode, attrsNode := entities.Content[i], entities.Content[i+1]
		entity := ir.EntitySchema{
			Name:       keyNode.Value,
			Attributes: make(map[string]ir.AttributeType),
		}

		if attrsNode.Kind != yaml.MappingNode || len(attrsNode.Content) == 0 {
			return nil, yamlError(filename, keyNode, "entity."+entity.Name, "entity must declare at least one attribute")
		}

		for j := 0; j+1 < len(attrsNode.Content); j += 2 {
			attrKey, attrVal := attrsNode.Content[j], attrsNode.Content[j+1]
			t := ir.AttributeType(attrVal.Value)
			if attrVal.Value == "number" {
				t = ir.TypeFloat
			}
			if attrVal.Kind != yaml.ScalarNode || !ir.ValidAttributeTypes[t] {
				return nil, yamlError(filename, attrVal, "type",
					fmt.Sprintf("unknown attribute type %q for %s.%s", attrVal.Value, entity.Name, attrKey.Value))
			}
			entity.Attributes[attrKey.Value] = t
		}

		model.Entities = append(model.Entities, entity)
	}

	sort.Slice(model.Entities, func(i, j int) bool {
		return model.Entities[i].Name < model.Entities[j].Name
	})

	if err := model.Validate(); err != nil {
		return nil, yamlError(filename, entities, "model", err.Error())
	}
	return model, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func yamlError(filename string, node *yaml.Node, field, msg string) *CompileError {
	return &CompileError{Field: field, Message: msg, File: filename, Line: node.Line}
}
