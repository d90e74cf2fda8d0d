package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CMS Timetable API",
        "description": "Week-aware timetables normalized from the school CMS",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Operator login"},
        {"name": "Timetable", "description": "Normalized timetables, occurrences and calendar feeds"},
        {"name": "Exports", "description": "Signed export downloads"},
        {"name": "Student", "description": "Profile and assemblies from the CMS"},
        {"name": "System", "description": "Health and metrics"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate operator",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Access token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Normalized timetable",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "year", "type": "integer", "required": false}
                ],
                "responses": {
                    "200": {"description": "Timetable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Timetable does not fit the period table", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "CMS unavailable with no snapshot, or timetable rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/refresh": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Force a timetable refresh",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "year", "type": "integer", "required": false},
                    {"in": "query", "name": "async", "type": "boolean", "required": false}
                ],
                "responses": {
                    "200": {"description": "Refreshed timetable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Refresh queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/today": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Schedule of one day",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "year", "type": "integer", "required": false},
                    {"in": "query", "name": "date", "type": "string", "format": "date", "required": false}
                ],
                "responses": {
                    "200": {"description": "Day schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/occurrences": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Dated timetable events",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "year", "type": "integer", "required": false},
                    {"in": "query", "name": "from", "type": "string", "format": "date", "required": true},
                    {"in": "query", "name": "to", "type": "string", "format": "date", "required": true}
                ],
                "responses": {
                    "200": {"description": "Occurrences", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid range", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/calendar.ics": {
            "get": {
                "tags": ["Timetable"],
                "summary": "iCalendar feed",
                "produces": ["text/calendar"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "year", "type": "integer", "required": false},
                    {"in": "query", "name": "weeks", "type": "integer", "minimum": 1, "maximum": 52, "required": false}
                ],
                "responses": {
                    "200": {"description": "VCALENDAR document", "schema": {"type": "string"}}
                }
            }
        },
        "/timetable/exports": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Generate a timetable export",
                "consumes": ["application/json"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Signed download link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Exports disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/snapshots": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Stored CMS snapshots",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "year", "type": "integer", "required": false},
                    {"in": "query", "name": "limit", "type": "integer", "minimum": 1, "maximum": 100, "required": false}
                ],
                "responses": {
                    "200": {"description": "Snapshot summaries", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a timetable export",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"in": "path", "name": "token", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Export file"},
                    "403": {"description": "Invalid token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/profile": {
            "get": {
                "tags": ["Student"],
                "summary": "Student profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Profile", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assemblies": {
            "get": {
                "tags": ["Student"],
                "summary": "Student assemblies",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Assemblies", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Service metrics summary",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Metrics", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["format"],
            "properties": {
                "year": {"type": "integer"},
                "format": {"type": "string", "enum": ["csv", "pdf", "ics"]}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
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
