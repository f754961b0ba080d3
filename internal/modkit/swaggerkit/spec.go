package swaggerkit

import "strings"

type obj = map[string]any

// decorate lifts swag's 2.0 output to 3.0.3, points servers at base and
// gives every operation the error envelope for 400 and 500
func decorate(doc obj, base string) {
	if _, ok := doc["swagger"]; ok {
		delete(doc, "swagger")
		doc["openapi"] = "3.0.3"
	}
	// the bundled UI does not render 3.1
	if v, _ := doc["openapi"].(string); v == "" || strings.HasPrefix(v, "3.1") {
		doc["openapi"] = "3.0.3"
	}
	if _, ok := doc["servers"]; !ok {
		doc["servers"] = []any{obj{"url": base}}
	}
	delete(doc, "basePath")

	child(child(doc, "components"), "schemas")["ErrorEnvelope"] = errorEnvelope

	paths, _ := doc["paths"].(obj)
	for _, p := range paths {
		ops, _ := p.(obj)
		for _, o := range ops {
			op, ok := o.(obj)
			if !ok {
				continue
			}
			resps := child(op, "responses")
			for code, text := range map[string]string{"400": "Bad Request", "500": "Internal Server Error"} {
				if _, ok := resps[code]; !ok {
					resps[code] = errorResponse(text)
				}
			}
		}
	}
}

func child(m obj, key string) obj {
	c, ok := m[key].(obj)
	if !ok {
		c = obj{}
		m[key] = c
	}
	return c
}

var errorEnvelope = obj{
	"type": "object",
	"properties": obj{
		"status_code": obj{"type": "integer"},
		"status":      obj{"type": "string"},
		"code":        obj{"type": "integer", "description": "application error code"},
		"error":       obj{"type": "string"},
		"field":       obj{"type": "string", "description": "input field at fault"},
		"request_id":  obj{"type": "string"},
	},
	"required": []any{"status_code", "status"},
}

func errorResponse(text string) obj {
	return obj{
		"description": text,
		"content": obj{
			"application/json": obj{
				"schema": obj{"$ref": "#/components/schemas/ErrorEnvelope"},
			},
		},
	}
}
