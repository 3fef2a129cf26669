package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Studio Ops API",
        "description": "Suggestion review and pattern learning engine for the Linden Works ops platform.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Login, token refresh and account management"},
        {"name": "Suggestions", "description": "Review queue, previews and source context"},
        {"name": "Review", "description": "Approve, reject, correct and rollback decisions"},
        {"name": "Patterns", "description": "Learned patterns and generator lookups"},
        {"name": "Ingest", "description": "Asynchronous source import jobs"},
        {"name": "System", "description": "Health and runtime metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["System"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["System"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and issue a token pair",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid or revoked refresh token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke the active refresh token",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Auth"],
                "summary": "Change the caller's password",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Describe the authenticated user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/suggestions": {
            "get": {
                "tags": ["Suggestions"],
                "summary": "List the review queue",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "priority", "in": "query", "type": "string"},
                    {"name": "minConfidence", "in": "query", "type": "number"},
                    {"name": "targetReference", "in": "query", "type": "string"},
                    {"name": "sourceReference", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Suggestions"],
                "summary": "Ingest a candidate suggestion",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IngestSuggestionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Unknown source reference"}
                }
            }
        },
        "/suggestions/groups": {
            "get": {
                "tags": ["Suggestions"],
                "summary": "Group pending suggestions by target",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/suggestions/groups/approve": {
            "post": {
                "tags": ["Review"],
                "summary": "Approve every pending suggestion in a target group",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GroupApproveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/suggestions/bulk/approve": {
            "post": {
                "tags": ["Review"],
                "summary": "Approve suggestions by id list or confidence floor",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkApproveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/suggestions/bulk/reject": {
            "post": {
                "tags": ["Review"],
                "summary": "Reject suggestions with a shared reason",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkRejectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/suggestions/{id}": {
            "get": {
                "tags": ["Suggestions"],
                "summary": "Get a suggestion with feedback and audit trail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/suggestions/{id}/preview": {
            "get": {
                "tags": ["Suggestions"],
                "summary": "Preview the changes an approval would perform",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/suggestions/{id}/source": {
            "get": {
                "tags": ["Suggestions"],
                "summary": "Resolve the originating email or transcript",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"},
                    "503": {"description": "Source body unavailable"}
                }
            }
        },
        "/suggestions/{id}/approve": {
            "post": {
                "tags": ["Review"],
                "summary": "Approve a suggestion and apply its change plan",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ApproveSuggestionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already reviewed"},
                    "422": {"description": "Not actionable"}
                }
            }
        },
        "/suggestions/{id}/reject": {
            "post": {
                "tags": ["Review"],
                "summary": "Reject a suggestion",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectSuggestionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already reviewed"}
                }
            }
        },
        "/suggestions/{id}/correct": {
            "post": {
                "tags": ["Review"],
                "summary": "Redirect a suggestion at the right target",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CorrectSuggestionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already reviewed"},
                    "422": {"description": "Unknown correct target"}
                }
            }
        },
        "/suggestions/{id}/rollback": {
            "post": {
                "tags": ["Review"],
                "summary": "Reverse the changes an approval performed",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not approved or already rolled back"}
                }
            }
        },
        "/suggestions/{id}/feedback": {
            "post": {
                "tags": ["Suggestions"],
                "summary": "Save reviewer feedback on a suggestion",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FeedbackRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/feedback/tags": {
            "get": {
                "tags": ["Suggestions"],
                "summary": "List distinct feedback tags",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/patterns": {
            "get": {
                "tags": ["Patterns"],
                "summary": "List learned patterns",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "targetReference", "in": "query", "type": "string"},
                    {"name": "minBoost", "in": "query", "type": "number"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/patterns/match": {
            "get": {
                "tags": ["Patterns"],
                "summary": "Look up patterns for a sender and keywords",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "sender", "in": "query", "type": "string"},
                    {"name": "keyword", "in": "query", "type": "string", "description": "Repeatable"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ingest-jobs": {
            "get": {
                "tags": ["Ingest"],
                "summary": "List recent import jobs",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Ingest"],
                "summary": "Queue a source import job",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateIngestJobRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ingest-jobs/{id}": {
            "get": {
                "tags": ["Ingest"],
                "summary": "Get an import job",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Runtime metrics snapshot",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Suggestion": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "suggestion_type": {"type": "string"},
                "status": {"type": "string"},
                "priority": {"type": "string"},
                "confidence": {"type": "number"},
                "suggested_data": {"type": "object"},
                "source_reference": {"type": "string"},
                "target_reference": {"type": "string"},
                "review_notes": {"type": "string"},
                "rejection_reason": {"type": "string"},
                "reviewed_by": {"type": "string"},
                "reviewed_at": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "SuggestionGroup": {
            "type": "object",
            "properties": {
                "target_reference": {"type": "string"},
                "count": {"type": "integer"},
                "high_priority": {"type": "integer"},
                "avg_confidence": {"type": "number"},
                "max_confidence": {"type": "number"}
            }
        },
        "ChangePlan": {
            "type": "object",
            "properties": {
                "suggestion_id": {"type": "string"},
                "actionable": {"type": "boolean"},
                "reason": {"type": "string"},
                "summary": {"type": "string"},
                "actions": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/PlannedAction"}
                }
            }
        },
        "PlannedAction": {
            "type": "object",
            "properties": {
                "action": {"type": "string"},
                "table": {"type": "string"},
                "key": {"type": "string"},
                "changes": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/FieldChange"}
                }
            }
        },
        "FieldChange": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "old": {"type": "string"},
                "new": {"type": "string"}
            }
        },
        "AuditEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "suggestion_id": {"type": "string"},
                "seq": {"type": "integer"},
                "action": {"type": "string"},
                "target_table": {"type": "string"},
                "target_key": {"type": "string"},
                "field_changes": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/FieldChange"}
                },
                "performed_by": {"type": "string"},
                "created_at": {"type": "string"},
                "reversed_at": {"type": "string"}
            }
        },
        "LearnedPattern": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "pattern_type": {"type": "string"},
                "pattern_key": {"type": "string"},
                "target_reference": {"type": "string"},
                "confidence_boost": {"type": "number"},
                "times_used": {"type": "integer"},
                "times_correct": {"type": "integer"},
                "times_rejected": {"type": "integer"},
                "notes": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "PatternMatch": {
            "type": "object",
            "properties": {
                "patterns": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/LearnedPattern"}
                },
                "combined_boost": {"type": "number"}
            }
        },
        "IngestJob": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "type": {"type": "string"},
                "params": {"type": "object"},
                "status": {"type": "string"},
                "progress": {"type": "integer"},
                "imported": {"type": "integer"},
                "skipped": {"type": "integer"},
                "created_by": {"type": "string"},
                "created_at": {"type": "string"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"},
                "error_message": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            },
            "required": ["refresh_token"]
        },
        "ChangePasswordRequest": {
            "type": "object",
            "properties": {
                "old_password": {"type": "string"},
                "new_password": {"type": "string"}
            },
            "required": ["old_password", "new_password"]
        },
        "IngestSuggestionRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "sourceReference": {"type": "string"},
                "confidence": {"type": "number"},
                "priority": {"type": "string"},
                "suggestedData": {"type": "object"}
            },
            "required": ["type", "sourceReference", "suggestedData"]
        },
        "ApproveSuggestionRequest": {
            "type": "object",
            "properties": {
                "edits": {"type": "object"},
                "actions": {"type": "array", "items": {"type": "object"}},
                "notes": {"type": "string"},
                "patterns": {"$ref": "#/definitions/PatternFlags"},
                "feedback": {"$ref": "#/definitions/FeedbackRequest"}
            }
        },
        "PatternFlags": {
            "type": "object",
            "properties": {
                "createSenderPattern": {"type": "boolean"},
                "createDomainPattern": {"type": "boolean"},
                "keywords": {"type": "array", "items": {"type": "string"}},
                "patternNotes": {"type": "string"}
            }
        },
        "RejectSuggestionRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            },
            "required": ["reason"]
        },
        "CorrectSuggestionRequest": {
            "type": "object",
            "properties": {
                "correctTarget": {"type": "string"},
                "reason": {"type": "string"},
                "createPattern": {"type": "boolean"},
                "patternNotes": {"type": "string"},
                "keywords": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["correctTarget", "reason"]
        },
        "BulkApproveRequest": {
            "type": "object",
            "properties": {
                "ids": {"type": "array", "items": {"type": "string"}},
                "minConfidence": {"type": "number"}
            }
        },
        "BulkRejectRequest": {
            "type": "object",
            "properties": {
                "ids": {"type": "array", "items": {"type": "string"}},
                "reason": {"type": "string"}
            },
            "required": ["ids", "reason"]
        },
        "GroupApproveRequest": {
            "type": "object",
            "properties": {
                "targetReference": {"type": "string"}
            },
            "required": ["targetReference"]
        },
        "FeedbackRequest": {
            "type": "object",
            "properties": {
                "notes": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "contactRole": {"type": "string"},
                "priorityOverride": {"type": "string"}
            }
        },
        "CreateIngestJobRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "fileName": {"type": "string"},
                "mailbox": {"type": "string"}
            },
            "required": ["type", "fileName"]
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
