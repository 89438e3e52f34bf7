// Package docs registers the OpenAPI description of the diagram API with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/diagrams": {
            "post": {
                "summary": "Create a diagram from a knowledge-graph document",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Diagram"}},
                    "400": {"description": "Invalid document", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/diagrams/generate": {
            "post": {
                "summary": "Create a diagram from a generated document",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Diagram"}},
                    "400": {"description": "Invalid parameters", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/diagrams/import": {
            "post": {
                "summary": "Create a diagram from an exported graph",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Diagram"}},
                    "400": {"description": "Invalid export", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/diagrams/{id}": {
            "get": {
                "summary": "Get the diagram document",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "delete": {
                "summary": "Close the diagram",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {
                    "204": {"description": "Closed"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/diagrams/{id}/scene": {
            "get": {
                "summary": "Render the current scene",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Scene"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/diagrams/{id}/export": {
            "get": {
                "summary": "Export the diagram",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/diagrams/{id}/flowchart": {
            "get": {
                "summary": "Export the diagram as a flowchart",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/diagrams/{id}/problems": {
            "get": {
                "summary": "List validation problems",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/diagrams/{id}/events": {
            "post": {
                "summary": "Dispatch a batch of input events",
                "parameters": [
                    {"$ref": "#/parameters/id"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EventsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Mutations applied and the resulting scene", "schema": {"$ref": "#/definitions/DispatchResult"}},
                    "400": {"description": "Invalid events", "schema": {"$ref": "#/definitions/Error"}},
                    "504": {"description": "Deadline passed, batch not applied", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/diagrams/{id}/undo": {
            "post": {
                "summary": "Undo the last mutation",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Step"}}}
            }
        },
        "/diagrams/{id}/redo": {
            "post": {
                "summary": "Redo the last undone mutation",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Step"}}}
            }
        },
        "/diagrams/{id}/relayout": {
            "post": {
                "summary": "Run the layout engine again",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Scene"}}}
            }
        },
        "/diagrams/{id}/merge": {
            "post": {
                "summary": "Merge another document into the diagram",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Diagram"}},
                    "400": {"description": "Invalid document", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/diagrams/{id}/layout": {
            "get": {
                "summary": "Get saved node positions",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "summary": "Restore saved node positions",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Scene"}},
                    "400": {"description": "Invalid layout", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/diagrams/{id}/ws": {
            "get": {
                "summary": "Subscribe to scene updates over a websocket",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {
                    "101": {"description": "Switching protocols"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        }
    },
    "parameters": {
        "id": {"name": "id", "in": "path", "required": true, "type": "string", "description": "Diagram id"}
    },
    "definitions": {
        "Error": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "details": {"type": "string"},
                "fields": {"type": "array", "items": {"type": "object"}},
                "retryable": {"type": "boolean"},
                "requestId": {"type": "string"}
            }
        },
        "EventsRequest": {
            "type": "object",
            "required": ["events"],
            "properties": {
                "events": {"type": "array", "minItems": 1, "maxItems": 500, "items": {"type": "object"}}
            }
        },
        "Diagram": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "scene": {"$ref": "#/definitions/Scene"}
            }
        },
        "DispatchResult": {
            "type": "object"
        },
        "Scene": {
            "type": "object"
        },
        "Step": {
            "type": "object",
            "properties": {
                "changed": {"type": "boolean"},
                "scene": {"$ref": "#/definitions/Scene"}
            }
        }
    }
}`

// SwaggerInfo holds the exported OpenAPI info.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Brain2 Canvas API",
	Description:      "Interactive knowledge-graph diagrams: layout, editing, undo and export.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
