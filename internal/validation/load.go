package validation

import (
	"github.com/rendis/gaiaflow/pkg/schema"
)

// Load runs the whole definition pipeline on a raw document: structural
// checks against the document schema, decoding, then Check. The workflow is
// nil when the document could not be decoded; otherwise it is returned even
// if the result carries errors so callers can still diagram it.
func Load(data []byte) (*schema.Workflow, *schema.ValidationResult) {
	result := ValidateDocument(data)
	if !result.Valid() {
		if wf, err := schema.ParseWorkflow(data); err == nil {
			return wf, result
		}
		return nil, result
	}

	wf, err := schema.ParseWorkflow(data)
	if err != nil {
		result.AddError("/", schema.ErrCodeParse, schema.Message(err))
		return nil, result
	}
	result.Merge(Check(wf))
	return wf, result
}
