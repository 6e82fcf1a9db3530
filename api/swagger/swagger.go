package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Academic Calendar API",
        "description": "Scheduling of lectures, labwork and exams with a change-request approval workflow.",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Calendar", "description": "Event lifecycle and change requests"},
        {"name": "Audit", "description": "Administrator audit trail"},
        {"name": "Notifications", "description": "Per-user notification inbox"}
    ],
    "paths": {
        "/calendar/create_event/": {
            "post": {
                "tags": ["Calendar"],
                "summary": "Create a pending event",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEventRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calendar/edit_event/{id}/": {
            "put": {
                "tags": ["Calendar"],
                "summary": "Edit or cancel an event",
                "description": "Edits to an approved event by a non-privileged actor are staged as a change request (201). Other edits apply in place (200).",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EditEventRequest"}}
                ],
                "responses": {
                    "200": {"description": "Mutated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Change request created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calendar/approve/{id}/": {
            "post": {
                "tags": ["Calendar"],
                "summary": "Approve a pending event or merge a change request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calendar/reject/{id}/": {
            "post": {
                "tags": ["Calendar"],
                "summary": "Reject a pending event or discard a change request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calendar/events/": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List events",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "course", "in": "query", "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string", "format": "date"},
                    {"name": "date_to", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calendar/events/{id}/": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Get an event",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calendar/audit/logs/": {
            "get": {
                "tags": ["Audit"],
                "summary": "List audit entries, latest first",
                "parameters": [
                    {"name": "action", "in": "query", "type": "string"},
                    {"name": "event", "in": "query", "type": "string"},
                    {"name": "actor", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calendar/audit/logs/export/": {
            "get": {
                "tags": ["Audit"],
                "summary": "Download the audit trail",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "action", "in": "query", "type": "string"},
                    {"name": "event", "in": "query", "type": "string"},
                    {"name": "actor", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calendar/notifications/": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List the caller's notifications",
                "parameters": [
                    {"name": "unread", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calendar/notifications/{id}/read/": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark a notification as read",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateEventRequest": {
            "type": "object",
            "required": ["date", "start_time", "end_time", "course", "room", "event_type"],
            "properties": {
                "title": {"type": "string", "default": "New Event"},
                "date": {"type": "string", "format": "date", "example": "2024-03-01"},
                "start_time": {"type": "string", "example": "10:00"},
                "end_time": {"type": "string", "example": "11:30"},
                "course": {"$ref": "#/definitions/RefID"},
                "room": {"$ref": "#/definitions/RefID"},
                "tutor": {"$ref": "#/definitions/RefID"},
                "event_type": {"type": "string", "enum": ["lecture", "labwork", "exam"]}
            }
        },
        "RefID": {
            "type": "string",
            "description": "Course, room or user id. Requests may send it as a JSON string or a JSON integer; responses always use a string.",
            "example": "42"
        },
        "EditEventRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "room": {"$ref": "#/definitions/RefID"},
                "tutor": {"$ref": "#/definitions/RefID"},
                "event_type": {"type": "string", "enum": ["lecture", "labwork", "exam"]},
                "action": {"type": "string", "enum": ["cancel"]}
            }
        },
        "Event": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "course": {"type": "string"},
                "room": {"type": "string"},
                "tutor": {"type": "string"},
                "event_type": {"type": "string", "enum": ["lecture", "labwork", "exam"]},
                "status": {"type": "string", "enum": ["pending", "approved", "rejected", "request_change", "cancelled"]},
                "related_event": {"type": "string"},
                "open_change_request": {"type": "string"}
            }
        },
        "EditResult": {
            "type": "object",
            "properties": {
                "outcome": {"type": "string", "enum": ["forked", "mutated"]},
                "event_id": {"type": "string"},
                "action": {"type": "string"},
                "event": {"$ref": "#/definitions/Event"}
            }
        },
        "AuditLog": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user": {"type": "string"},
                "action": {"type": "string", "enum": ["createEvent", "editEvent", "approveEvent", "rejectEvent", "cancelEvent"]},
                "event": {"type": "string"},
                "details": {"type": "object"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "Notification": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user": {"type": "string"},
                "event": {"type": "string"},
                "message": {"type": "string"},
                "is_read": {"type": "boolean"},
                "created_at": {"type": "string", "format": "date-time"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
