// Package docs registers the OpenAPI description served at /swagger.
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness and dependency status",
                "operationId": "health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}}
                }
            }
        },
        "/telegram/webhook": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Telegram"],
                "summary": "Receive a Telegram update",
                "operationId": "telegramWebhook",
                "parameters": [
                    {"type": "string", "description": "Secret registered with setWebhook", "name": "X-Telegram-Bot-Api-Secret-Token", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "boolean"}}}
                }
            }
        },
        "/telegram/webhook/{tenant}": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Telegram"],
                "summary": "Receive a Telegram update for a tenant",
                "operationId": "telegramWebhookTenant",
                "parameters": [
                    {"type": "string", "description": "Secret registered with setWebhook", "name": "X-Telegram-Bot-Api-Secret-Token", "in": "header"},
                    {"type": "string", "description": "Tenant id", "name": "tenant", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "boolean"}}}
                }
            }
        },
        "/telegram/test-send": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Telegram"],
                "summary": "Send a diagnostic message",
                "operationId": "telegramTestSend",
                "parameters": [
                    {"type": "integer", "description": "Target chat id", "name": "chat_id", "in": "query", "required": true},
                    {"type": "string", "description": "Message text", "name": "message", "in": "query"},
                    {"type": "string", "description": "Tenant id", "name": "tenant", "in": "query"},
                    {"type": "string", "description": "Tenant id", "name": "X-Tenant-ID", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TestSendResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/conversations": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Conversations"],
                "summary": "List conversations",
                "operationId": "listConversations",
                "parameters": [
                    {"type": "string", "description": "Tenant id", "name": "X-Tenant-ID", "in": "header", "required": true},
                    {"type": "string", "description": "Filter by user", "name": "user_id", "in": "query"},
                    {"type": "integer", "description": "Page (1-based)", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "page_size", "in": "query"},
                    {"type": "string", "description": "ETag from a previous response", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListConversationsResponse"}},
                    "304": {"description": "Not Modified"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/memory/{user_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Memory"],
                "summary": "Get a user's conversation memory",
                "operationId": "getMemory",
                "parameters": [
                    {"type": "string", "description": "Tenant id", "name": "X-Tenant-ID", "in": "header"},
                    {"type": "string", "description": "User id", "name": "user_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["Memory"],
                "summary": "Clear a user's conversation memory",
                "operationId": "clearMemory",
                "parameters": [
                    {"type": "string", "description": "Tenant id", "name": "X-Tenant-ID", "in": "header"},
                    {"type": "string", "description": "User id", "name": "user_id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/integrations/telegram": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Integrations"],
                "summary": "Register a Telegram bot credential",
                "operationId": "registerTelegram",
                "parameters": [
                    {"description": "Credential", "name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/integrations/telegram/{tenant}/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Integrations"],
                "summary": "Credential status for a tenant",
                "operationId": "telegramStatus",
                "parameters": [
                    {"type": "string", "description": "Tenant id", "name": "tenant", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/integrations/telegram/{tenant}/{name}": {
            "delete": {
                "tags": ["Integrations"],
                "summary": "Deactivate a tenant's Telegram credential",
                "operationId": "deactivateTelegram",
                "parameters": [
                    {"type": "string", "description": "Tenant id", "name": "tenant", "in": "path", "required": true},
                    {"type": "string", "description": "Credential name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "bad_request"},
                "message": {"type": "string"}
            }
        },
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "database": {"type": "string", "example": "ok"},
                "knowledge_entries": {"type": "integer"},
                "knowledge_loaded_at": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.TestSendResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "tenant_id": {"type": "string"},
                "mode": {"type": "string", "example": "path"},
                "credential": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "handlers.ListConversationsResponse": {
            "type": "object",
            "properties": {
                "conversations": {"type": "array", "items": {"type": "object"}},
                "pagination": {"type": "object"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "BizBot API",
	Description:      "Multi-tenant Telegram business bot: webhook intake and admin endpoints.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
