// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tools

// SchemaBuilder assembles an object JSON Schema for a tool's arguments.
//
//	schema := tools.NewSchema().
//		String("query", "search query", true).
//		Integer("limit", "maximum results", false).
//		Build()
type SchemaBuilder struct {
	properties map[string]interface{}
	required   []string
}

// NewSchema starts an object schema.
func NewSchema() *SchemaBuilder {
	return &SchemaBuilder{properties: make(map[string]interface{})}
}

func (b *SchemaBuilder) add(name string, prop map[string]interface{}, required bool) *SchemaBuilder {
	b.properties[name] = prop
	if required {
		b.required = append(b.required, name)
	}
	return b
}

// String adds a string property.
func (b *SchemaBuilder) String(name, description string, required bool) *SchemaBuilder {
	return b.add(name, map[string]interface{}{"type": "string", "description": description}, required)
}

// Integer adds an integer property.
func (b *SchemaBuilder) Integer(name, description string, required bool) *SchemaBuilder {
	return b.add(name, map[string]interface{}{"type": "integer", "description": description}, required)
}

// Number adds a numeric property.
func (b *SchemaBuilder) Number(name, description string, required bool) *SchemaBuilder {
	return b.add(name, map[string]interface{}{"type": "number", "description": description}, required)
}

// Boolean adds a boolean property.
func (b *SchemaBuilder) Boolean(name, description string, required bool) *SchemaBuilder {
	return b.add(name, map[string]interface{}{"type": "boolean", "description": description}, required)
}

// Enum adds a string property restricted to the given values.
func (b *SchemaBuilder) Enum(name, description string, required bool, values ...string) *SchemaBuilder {
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return b.add(name, map[string]interface{}{
		"type":        "string",
		"description": description,
		"enum":        enum,
	}, required)
}

// Object adds a nested object property with its own schema.
func (b *SchemaBuilder) Object(name, description string, required bool, nested *SchemaBuilder) *SchemaBuilder {
	prop := nested.Build()
	prop["description"] = description
	return b.add(name, prop, required)
}

// Array adds an array property whose items follow the given schema.
func (b *SchemaBuilder) Array(name, description string, required bool, items map[string]interface{}) *SchemaBuilder {
	return b.add(name, map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       items,
	}, required)
}

// Build finalizes the schema.
func (b *SchemaBuilder) Build() map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": b.properties,
	}
	if len(b.required) > 0 {
		required := make([]interface{}, len(b.required))
		for i, name := range b.required {
			required[i] = name
		}
		schema["required"] = required
	}
	return schema
}
