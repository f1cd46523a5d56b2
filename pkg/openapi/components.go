package openapi

import "maps"

func errorResponse(description string) *Response {
	return &Response{
		Description: description,
		Content: jsonContent(&Schema{
			Type:       "object",
			Properties: map[string]*Schema{"error": {Type: "string"}},
			Required:   []string{"error"},
		}),
	}
}

// NewComponents returns the schemas and error responses every document shares.
func NewComponents() *Components {
	return &Components{
		Schemas: map[string]*Schema{
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":     {Type: "integer", Description: "1-based page number", Example: 1},
					"pageSize": {Type: "integer", Description: "Results per page", Example: 20},
					"search":   {Type: "string", Description: "Case-insensitive substring filter"},
					"sort":     {Type: "string", Description: "Comma-separated fields, - prefix for descending", Example: "-createdAt,reference"},
				},
			},
		},
		Responses: map[string]*Response{
			"BadRequest":    errorResponse("Malformed or invalid request"),
			"NotFound":      errorResponse("Resource not found"),
			"Conflict":      errorResponse("State transition not allowed or transaction busy"),
			"InternalError": errorResponse("Unexpected server failure"),
		},
	}
}

// AddSchemas merges schemas, replacing same-named entries.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}
