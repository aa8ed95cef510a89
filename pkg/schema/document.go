package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseWorkflow decodes a workflow document. YAML and JSON are both accepted
// since JSON is valid YAML. Document defaults are applied to the result.
func ParseWorkflow(data []byte) (*Workflow, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, NewError(ErrCodeParse, "empty workflow document")
	}

	var wf Workflow
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&wf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewError(ErrCodeParse, "empty workflow document")
		}
		return nil, NewErrorf(ErrCodeParse, "decode workflow: %s", err.Error()).WithCause(err)
	}

	wf.ApplyDefaults()
	return &wf, nil
}

// LoadWorkflowFile reads and parses the workflow document at path.
func LoadWorkflowFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	wf, err := ParseWorkflow(data)
	if err != nil {
		return nil, fmt.Errorf("workflow: parse %s: %w", path, err)
	}
	return wf, nil
}

// EncodeYAML serializes wf to its YAML document form.
func EncodeYAML(wf *Workflow) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(wf); err != nil {
		return nil, fmt.Errorf("workflow: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("workflow: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJSON serializes wf to indented JSON.
func EncodeJSON(wf *Workflow) ([]byte, error) {
	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("workflow: encode json: %w", err)
	}
	return data, nil
}
