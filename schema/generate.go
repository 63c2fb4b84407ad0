package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Draft is the JSON Schema dialect generated documents declare.
const Draft = "http://json-schema.org/draft-07/schema#"

// Options control how a Go type is reflected into a schema.
type Options struct {
	Title       string
	Description string
	// FieldNameTag is the struct tag property names are taken from.
	// Defaults to "json".
	FieldNameTag string
	// Strict rejects properties the type does not declare.
	Strict bool
}

// Generate reflects v into a JSON Schema document. No field is required
// unless its jsonschema tag says so.
func Generate(v interface{}, opts Options) ([]byte, error) {
	tag := opts.FieldNameTag
	if tag == "" {
		tag = "json"
	}
	r := &jsonschema.Reflector{
		AllowAdditionalProperties:  !opts.Strict,
		ExpandedStruct:             true,
		FieldNameTag:               tag,
		RequiredFromJSONSchemaTags: true,
	}

	s := r.Reflect(v)
	s.Title = opts.Title
	s.Description = opts.Description
	s.Version = Draft

	return json.MarshalIndent(s, "", "  ")
}
