package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/rendis/gaiaflow/pkg/schema"
)

const documentSchemaURL = "https://gaiaflow.dev/schemas/workflow.json"

// documentSchemaJSON describes the shape of a workflow document. Semantic
// rules (unique ids, dependencies, cycles) are left to Check.
const documentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://gaiaflow.dev/schemas/workflow.json",
  "type": "object",
  "required": ["id", "name", "steps"],
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "version": {"type": ["string", "number"]},
    "on_error": {"type": "string"},
    "variables": {"type": "object"},
    "triggers": {
      "type": "array",
      "items": {"$ref": "#/$defs/trigger"}
    },
    "steps": {
      "type": "array",
      "items": {"$ref": "#/$defs/step"}
    }
  },
  "$defs": {
    "trigger": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": ["manual", "schedule", "event", "webhook"]},
        "config": {"type": "object"}
      }
    },
    "step": {
      "type": "object",
      "required": ["id", "action"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string"},
        "action": {"type": "string", "minLength": 1},
        "parameters": {"type": "object"},
        "condition": {"type": "string"},
        "continue_on_error": {"type": "boolean"},
        "depends_on": {
          "type": "array",
          "items": {"type": "string"}
        }
      }
    }
  }
}`

var (
	documentSchemaOnce sync.Once
	documentSchema     *jsonschema.Schema
	documentSchemaErr  error

	printer = message.NewPrinter(language.English)
)

func compiledDocumentSchema() (*jsonschema.Schema, error) {
	documentSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchemaJSON))
		if err != nil {
			documentSchemaErr = fmt.Errorf("decode workflow schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(documentSchemaURL, doc); err != nil {
			documentSchemaErr = fmt.Errorf("add workflow schema: %w", err)
			return
		}
		documentSchema, documentSchemaErr = c.Compile(documentSchemaURL)
	})
	return documentSchema, documentSchemaErr
}

// ValidateDocument checks the raw document (YAML or JSON) against the
// workflow document schema before it is decoded into a schema.Workflow.
// Every violation becomes one error issue located by its JSON pointer.
func ValidateDocument(data []byte) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	sch, err := compiledDocumentSchema()
	if err != nil {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	doc, err := toJSONValue(data)
	if err != nil {
		result.AddError("/", schema.ErrCodeParse, err.Error())
		return result
	}

	err = sch.Validate(doc)
	if err == nil {
		return result
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}
	for _, v := range collectViolations(verr) {
		result.AddError(v.path, schema.ErrCodeValidation, v.path+": "+v.message)
	}
	return result
}

// toJSONValue decodes YAML into generic values and re-reads them through the
// schema library's JSON decoder so numbers have the representation it expects.
func toJSONValue(data []byte) (any, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if generic == nil {
		return nil, errors.New("empty workflow document")
	}
	b, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("document is not JSON compatible: %w", err)
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}

type violation struct {
	path    string
	message string
}

// collectViolations flattens the error tree into its leaves.
func collectViolations(verr *jsonschema.ValidationError) []violation {
	if len(verr.Causes) == 0 {
		path := "/" + strings.Join(verr.InstanceLocation, "/")
		return []violation{{path: path, message: verr.ErrorKind.LocalizedString(printer)}}
	}
	var out []violation
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}
