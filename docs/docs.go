// Package docs is generated by swaggo/swag from the handler annotations.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/cron/insights/batch": {
            "post": {
                "description": "Generates the report of every user in the batch with bounded concurrency.\nPer-user failures are reported as skipped; redelivery is safe.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Cron"],
                "summary": "Process one batch message",
                "operationId": "processBatch",
                "parameters": [
                    {"type": "string", "description": "Push-queue delivery signature", "name": "Upstash-Signature", "in": "header"},
                    {"type": "string", "description": "Bearer <CRON_SECRET> for direct calls", "name": "Authorization", "in": "header"},
                    {"description": "Batch message", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.BatchMessage"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.BatchSummary"}},
                    "400": {"description": "Malformed batch message", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Invalid signature or secret", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Configuration error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/cron/insights/{type}": {
            "get": {
                "description": "Lists one page of users, keeps the eligible ones and publishes them in batch messages.\nA full page queues a delayed request for the next page.",
                "produces": ["application/json"],
                "tags": ["Cron"],
                "summary": "Run one scheduler page",
                "operationId": "runScheduler",
                "parameters": [
                    {"type": "string", "description": "Bearer <CRON_SECRET>", "name": "Authorization", "in": "header"},
                    {"enum": ["weekly", "monthly"], "type": "string", "description": "Report type", "name": "type", "in": "path", "required": true},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 100, "description": "Users per page", "name": "limit", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 25, "description": "Users per batch message", "name": "batchSize", "in": "query"},
                    {"type": "string", "example": "2025-11-17", "description": "Base date (YYYY-MM-DD); defaults to today", "name": "baseDate", "in": "query"},
                    {"type": "string", "description": "Run for a single user", "name": "userId", "in": "query"},
                    {"type": "string", "description": "\"1\" runs the single user inline", "name": "sync", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.RunSummary"}},
                    "400": {"description": "Invalid type or baseDate", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing or invalid secret", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Configuration or listing error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/insights/coverage": {
            "get": {
                "description": "Counts stored results for a period next to the currently eligible users.\nThe period comes from start/end or, when both are absent, from baseDate like the scheduler.",
                "produces": ["application/json"],
                "tags": ["Insights"],
                "summary": "Stored results for a period",
                "operationId": "insightCoverage",
                "parameters": [
                    {"type": "string", "description": "Bearer <CRON_SECRET>", "name": "Authorization", "in": "header", "required": true},
                    {"enum": ["weekly", "monthly"], "type": "string", "description": "Report type", "name": "type", "in": "query", "required": true},
                    {"type": "string", "description": "Period start (YYYY-MM-DD)", "name": "start", "in": "query"},
                    {"type": "string", "description": "Period end (YYYY-MM-DD)", "name": "end", "in": "query"},
                    {"type": "string", "description": "Base date (YYYY-MM-DD)", "name": "baseDate", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Coverage"}},
                    "400": {"description": "Invalid period", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing or invalid secret", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.BatchMessage": {
            "type": "object",
            "required": ["period", "type", "userIds"],
            "properties": {
                "month": {"type": "string"},
                "period": {"$ref": "#/definitions/domain.PeriodRange"},
                "type": {"type": "string", "enum": ["weekly", "monthly"]},
                "userIds": {"type": "array", "maxItems": 100, "minItems": 1, "items": {"type": "string"}}
            }
        },
        "domain.PeriodRange": {
            "type": "object",
            "required": ["endDate", "startDate"],
            "properties": {
                "endDate": {"type": "string"},
                "startDate": {"type": "string"}
            }
        },
        "domain.UserStatus": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"},
                "status": {"type": "string"},
                "userId": {"type": "string"}
            }
        },
        "domain.Coverage": {
            "type": "object",
            "properties": {
                "eligibleUsers": {"type": "integer"},
                "endDate": {"type": "string"},
                "lastUpdatedAt": {"type": "string"},
                "results": {"type": "integer"},
                "startDate": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "bad_request"},
                "message": {"type": "string", "example": "type must be weekly or monthly"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "services.BatchSummary": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "processed": {"type": "integer"},
                "results": {"type": "array", "items": {"$ref": "#/definitions/domain.UserStatus"}},
                "skipped": {"type": "integer"},
                "updated": {"type": "integer"}
            }
        },
        "services.RunSummary": {
            "type": "object",
            "properties": {
                "batchSize": {"type": "integer"},
                "batches": {"type": "integer"},
                "endDate": {"type": "string"},
                "limit": {"type": "integer"},
                "month": {"type": "string"},
                "nextPage": {"type": "integer"},
                "nextPageScheduled": {"type": "boolean"},
                "ok": {"type": "boolean"},
                "page": {"type": "integer"},
                "result": {"$ref": "#/definitions/domain.UserStatus"},
                "startDate": {"type": "string"},
                "users": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Journal Insights API",
	Description:      "Scheduled weekly and monthly insight generation for journaling users.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
