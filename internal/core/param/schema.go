package param

// Schema projects params onto a JSON-schema object description, the shape
// used for tool schemas and generated docs.
func Schema(params []Param) map[string]any {
	props := make(map[string]any, len(params))
	var required []string

	for _, p := range params {
		prop := map[string]any{"type": string(p.Kind)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.ValidValues) > 0 {
			values := make([]any, len(p.ValidValues))
			for i, s := range p.ValidValues {
				values[i] = s
			}
			if p.IsClosed() {
				prop["enum"] = values
			} else {
				prop["examples"] = values
			}
		}
		props[p.Name] = prop
		if p.Required && p.Default == nil {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
