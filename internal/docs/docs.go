// Package docs описание API для swagger UI на /docs.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "BotKey": {"type": "apiKey", "name": "X-Bot-Api-Key", "in": "header"}
    },
    "paths": {
        "/auth/telegram": {
            "post": {
                "tags": ["Auth"],
                "summary": "Вход через Telegram",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"type": "object"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.Result"}},
                    "400": {"description": "INVALID_FORMAT", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "INVALID_SIGNATURE | INVALID_INITDATA", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "CONFIG_ERROR | USER_CREATE_ERROR", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/auth/telegram/bot": {
            "post": {
                "tags": ["Auth"],
                "summary": "Вход пользователя, созданного ботом",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "header", "name": "X-Bot-Api-Key", "type": "string", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.Result"}},
                    "400": {"description": "INVALID_FORMAT", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "UNAUTHORIZED | INVALID_SIGNATURE", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "CONFIG_ERROR | USER_CREATE_ERROR", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Обновление пары токенов",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/refresh.Request"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/jwt.Pair"}},
                    "401": {"description": "REFRESH_FAILED", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "422": {"description": "INVALID_FORMAT", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/auth/deeplink": {
            "post": {
                "tags": ["DeepLink"],
                "summary": "Создание deep-link сессии",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/loginsession.Created"}}
                }
            }
        },
        "/auth/deeplink/confirm": {
            "post": {
                "security": [{"BotKey": []}],
                "tags": ["DeepLink"],
                "summary": "Подтверждение сессии ботом",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/confirm.Request"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.OKResponse"}},
                    "400": {"description": "SESSION_EXPIRED | INVALID_FORMAT", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "UNAUTHORIZED", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "404": {"description": "SESSION_NOT_FOUND", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/auth/deeplink/poll": {
            "get": {
                "tags": ["DeepLink"],
                "summary": "Опрос deep-link сессии",
                "produces": ["application/json"],
                "parameters": [{"in": "query", "name": "token", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "pending | approved | expired | not_found", "schema": {"$ref": "#/definitions/loginsession.PollResult"}},
                    "400": {"description": "INVALID_FORMAT", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Users"],
                "summary": "Текущий пользователь",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.PublicUser"}},
                    "401": {"description": "TOKEN_EXPIRED | TOKEN_INVALID", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/subscription": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Subscriptions"],
                "summary": "Состояние подписки",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/subscription.Status"}},
                    "401": {"description": "TOKEN_EXPIRED | TOKEN_INVALID", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/payments": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Payments"],
                "summary": "Создать платёж",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/paymentcreate.Request"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/payment.Checkout"}},
                    "400": {"description": "INVALID_FORMAT", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "TOKEN_EXPIRED | TOKEN_INVALID", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "502": {"description": "payment provider error", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            },
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Payments"],
                "summary": "История платежей",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/paymentlist.Response"}},
                    "401": {"description": "TOKEN_EXPIRED | TOKEN_INVALID", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/payments/webhook": {
            "post": {
                "tags": ["Payments"],
                "summary": "Вебхук платёжного шлюза",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "header", "name": "X-Api-Signature", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.OKResponse"}},
                    "400": {"description": "INVALID_FORMAT", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "INVALID_SIGNATURE", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "tags": ["Health"],
                "summary": "Проверка готовности",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/health.Response"}},
                    "503": {"description": "degraded", "schema": {"$ref": "#/definitions/health.Response"}}
                }
            }
        }
    },
    "definitions": {
        "response.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "code": {"type": "string"}}
        },
        "response.OKResponse": {
            "type": "object",
            "properties": {"ok": {"type": "boolean"}}
        },
        "jwt.Pair": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "refreshToken": {"type": "string"},
                "expiresIn": {"type": "integer"}
            }
        },
        "models.PublicUser": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "telegramId": {"type": "integer"},
                "username": {"type": "string"},
                "firstName": {"type": "string"},
                "lastName": {"type": "string"},
                "photoUrl": {"type": "string"},
                "isNewUser": {"type": "boolean"}
            }
        },
        "auth.Result": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "refreshToken": {"type": "string"},
                "expiresIn": {"type": "integer"},
                "user": {"$ref": "#/definitions/models.PublicUser"}
            }
        },
        "refresh.Request": {
            "type": "object",
            "required": ["refreshToken"],
            "properties": {"refreshToken": {"type": "string"}, "telegramId": {"type": "integer"}}
        },
        "confirm.Request": {
            "type": "object",
            "required": ["token", "telegramId"],
            "properties": {
                "token": {"type": "string"},
                "telegramId": {"type": "integer"},
                "username": {"type": "string"},
                "firstName": {"type": "string"},
                "lastName": {"type": "string"},
                "photoUrl": {"type": "string"},
                "ref": {"type": "integer"}
            }
        },
        "loginsession.Created": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "botDeepLinkUrl": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "loginsession.PollResult": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["pending", "approved", "expired", "not_found"]},
                "accessToken": {"type": "string"},
                "refreshToken": {"type": "string"},
                "expiresIn": {"type": "integer"},
                "user": {"$ref": "#/definitions/models.PublicUser"}
            }
        },
        "paymentcreate.Request": {
            "type": "object",
            "required": ["plan"],
            "properties": {"plan": {"type": "string", "enum": ["1_month", "3_months", "6_months", "12_months"]}}
        },
        "payment.Checkout": {
            "type": "object",
            "properties": {
                "paymentId": {"type": "integer"},
                "orderId": {"type": "string"},
                "paymentUrl": {"type": "string"},
                "plan": {"type": "string"},
                "amount": {"type": "integer"},
                "currency": {"type": "string"}
            }
        },
        "payment.View": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "plan": {"type": "string"},
                "amount": {"type": "integer"},
                "currency": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "completed", "failed"]},
                "subscriptionId": {"type": "integer"},
                "createdAt": {"type": "string", "format": "date-time"}
            }
        },
        "paymentlist.Response": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "payments": {"type": "array", "items": {"$ref": "#/definitions/payment.View"}}
            }
        },
        "subscription.Status": {
            "type": "object",
            "properties": {
                "active": {"type": "boolean"},
                "plan": {"type": "string"},
                "status": {"type": "string", "enum": ["active", "expired", "cancelled"]},
                "startDate": {"type": "string", "format": "date-time"},
                "endDate": {"type": "string", "format": "date-time"},
                "daysLeft": {"type": "integer"}
            }
        },
        "health.Response": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "checks": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo метаданные описания, доступные для переопределения при старте.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Outlivion API",
	Description:      "Вход через Telegram и сверка платежей с подписками",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
