package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Content Admin API",
        "description": "Content hierarchy, staged artifact approval and manager assignments",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Hierarchy", "description": "Channels, categories and pages"},
        {"name": "Artifacts", "description": "Pending uploads and approval"},
        {"name": "Assignments", "description": "Supervisor and worker assignments"}
    ],
    "paths": {
        "/hierarchy": {
            "get": {
                "tags": ["Hierarchy"],
                "summary": "Get the content hierarchy with assignments",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/hierarchy/refresh": {
            "post": {
                "tags": ["Hierarchy"],
                "summary": "Drop the cached hierarchy",
                "responses": {
                    "204": {"description": "Invalidated"}
                }
            }
        },
        "/nodes/{id}": {
            "get": {
                "tags": ["Hierarchy"],
                "summary": "Get a hierarchy node",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Node not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/nodes/{id}/path": {
            "get": {
                "tags": ["Hierarchy"],
                "summary": "Resolve the display path of a node",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Node not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pages/{id}/artifacts": {
            "get": {
                "tags": ["Artifacts"],
                "summary": "List artifacts of a page",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Artifacts"],
                "summary": "Attach additional content to a page",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "uploaded_by", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created with a pending version", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "File type not allowed or node is not a page", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Upload too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Blob storage unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/artifacts/{id}": {
            "get": {
                "tags": ["Artifacts"],
                "summary": "Get an artifact",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Artifacts"],
                "summary": "Delete additional content",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "400": {"description": "Page images cannot be deleted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/artifacts/{id}/content": {
            "get": {
                "tags": ["Artifacts"],
                "summary": "Download the active or pending version",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "version", "in": "query", "type": "string", "enum": ["active", "pending"]}
                ],
                "responses": {
                    "200": {"description": "File content", "schema": {"type": "file"}},
                    "404": {"description": "No active version", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Nothing staged", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Blob missing or unreachable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/artifacts/{id}/archives": {
            "get": {
                "tags": ["Artifacts"],
                "summary": "List blobs replaced by past approvals",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/artifacts/{id}/pending": {
            "post": {
                "tags": ["Artifacts"],
                "summary": "Upload a pending version",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "uploaded_by", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Staged", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid upload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Upload too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Blob storage unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/artifacts/{id}/approve": {
            "post": {
                "tags": ["Artifacts"],
                "summary": "Promote the pending version to active",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ApproveArtifactRequest"}}
                ],
                "responses": {
                    "200": {"description": "Approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Nothing staged", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Pending blob unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List assignments",
                "parameters": [
                    {"name": "target_kind", "in": "query", "type": "string", "enum": ["CHANNEL", "CATEGORY", "PAGE"]},
                    {"name": "target_id", "in": "query", "type": "string"},
                    {"name": "role", "in": "query", "type": "string", "enum": ["SUPERVISOR", "WORKER"]},
                    {"name": "user_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Assignments"],
                "summary": "Assign a manager",
                "description": "Returns 409 with a conflict descriptor in error.details when the target and role are already held.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAssignmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Invalid target", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Holder kept changing, retry", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/lookup": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Get the assignment holding a target and role",
                "parameters": [
                    {"name": "target_kind", "in": "query", "required": true, "type": "string"},
                    {"name": "target_id", "in": "query", "required": true, "type": "string"},
                    {"name": "role", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/export": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Download the assignment roster",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "required": false, "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "target_kind", "in": "query", "required": false, "type": "string"},
                    {"name": "role", "in": "query", "required": false, "type": "string"},
                    {"name": "user_id", "in": "query", "required": false, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Roster file", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}": {
            "put": {
                "tags": ["Assignments"],
                "summary": "Replace the assignee after confirmation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReplaceAssignmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replaced", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Assignee changed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Confirmation missing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Assignments"],
                "summary": "Remove an assignment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Removed"}
                }
            }
        }
    },
    "definitions": {
        "ApproveArtifactRequest": {
            "type": "object",
            "properties": {
                "approved_by": {"type": "string"}
            }
        },
        "CreateAssignmentRequest": {
            "type": "object",
            "required": ["target_kind", "target_id", "role", "user_id"],
            "properties": {
                "target_kind": {"type": "string", "enum": ["CHANNEL", "CATEGORY", "PAGE"]},
                "target_id": {"type": "string"},
                "role": {"type": "string", "enum": ["SUPERVISOR", "WORKER"]},
                "user_id": {"type": "string"}
            }
        },
        "ReplaceAssignmentRequest": {
            "type": "object",
            "required": ["user_id", "confirmed"],
            "properties": {
                "user_id": {"type": "string"},
                "confirmed": {"type": "boolean"},
                "expected_user_id": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
