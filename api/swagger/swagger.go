package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "QR Attendance API",
        "description": "Daily QR attendance for a single class cohort",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login and identity"},
        {"name": "QR", "description": "QR issuance and redemption"},
        {"name": "Attendance", "description": "Attendance views, overrides, export and reset"},
        {"name": "Users", "description": "Cohort roster management"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unreachable"}
                }
            }
        },
        "/setup": {
            "post": {
                "tags": ["Users"],
                "summary": "Bootstrap teacher account",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/SetupResponse"}}}
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LoginResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/UserInfo"}}}
            }
        },
        "/qr/generate": {
            "post": {
                "tags": ["QR"],
                "summary": "Issue attendance QR code",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/QRIssueResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/qr/scan": {
            "post": {
                "tags": ["QR"],
                "summary": "Redeem attendance QR code",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/QRScanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/QRScanResponse"}},
                    "400": {"description": "Expired, inactive, wrong day or already redeemed", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "404": {"description": "QR code not found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/attendance": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Query attendance",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "date", "in": "query", "type": "string", "format": "date"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["hadir", "izin", "sakit", "alfa"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TeacherAttendanceResponse"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            },
            "put": {
                "tags": ["Attendance"],
                "summary": "Set a student's status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkAttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AttendanceRecord"}},
                    "404": {"description": "Student not found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/attendance/export": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Export daily attendance",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "date", "in": "query", "type": "string", "format": "date"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File", "schema": {"type": "file"}}}
            }
        },
        "/attendance/reset": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Reset attendance",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "includeSessions", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResetResponse"}},
                    "500": {"description": "Storage failure", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List roster",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/User"}}}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create student account",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/User"}},
                    "409": {"description": "User already exists", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/users/{id}": {
            "delete": {
                "tags": ["Users"],
                "summary": "Delete account and its attendance",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/users/import": {
            "post": {
                "tags": ["Users"],
                "summary": "Import roster CSV",
                "consumes": ["multipart/form-data"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "csvfile", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ImportResult"}}}
            }
        },
        "/users/export": {
            "get": {
                "tags": ["Users"],
                "summary": "Export roster CSV",
                "produces": ["text/csv"],
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "File", "schema": {"type": "file"}}}
            }
        }
    },
    "definitions": {
        "ErrorBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "UserInfo": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "name": {"type": "string"},
                "role": {"type": "string", "enum": ["guru", "siswa"]},
                "class": {"type": "string"}
            }
        },
        "LoginResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "expires_in": {"type": "integer"},
                "user": {"$ref": "#/definitions/UserInfo"}
            }
        },
        "User": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "role": {"type": "string", "enum": ["guru", "siswa"]},
                "class": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "CreateUserRequest": {
            "type": "object",
            "required": ["name", "email", "password", "role"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "role": {"type": "string", "enum": ["siswa"]}
            }
        },
        "ImportResult": {
            "type": "object",
            "properties": {
                "success": {"type": "integer"},
                "errors": {"type": "integer"},
                "total": {"type": "integer"},
                "details": {"type": "array", "items": {"type": "string"}},
                "message": {"type": "string"}
            }
        },
        "SetupResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "admin": {"$ref": "#/definitions/UserInfo"},
                "created": {"type": "boolean"}
            }
        },
        "QRIssueResponse": {
            "type": "object",
            "properties": {
                "qrCode": {"type": "string"},
                "token": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "QRScanRequest": {
            "type": "object",
            "required": ["qrData"],
            "properties": {
                "qrData": {"type": "string"}
            }
        },
        "QRScanResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"}
            }
        },
        "AttendanceRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "status": {"type": "string", "enum": ["hadir", "izin", "sakit", "alfa"]},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "MarkAttendanceRequest": {
            "type": "object",
            "required": ["studentId", "status"],
            "properties": {
                "studentId": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "status": {"type": "string", "enum": ["hadir", "izin", "sakit", "alfa"]}
            }
        },
        "DailyEntry": {
            "type": "object",
            "properties": {
                "_id": {"type": "string"},
                "student": {
                    "type": "object",
                    "properties": {
                        "_id": {"type": "string"},
                        "name": {"type": "string"},
                        "email": {"type": "string"}
                    }
                },
                "date": {"type": "string", "format": "date"},
                "status": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "DailyStats": {
            "type": "object",
            "properties": {
                "hadir": {"type": "integer"},
                "izin": {"type": "integer"},
                "sakit": {"type": "integer"},
                "alfa": {"type": "integer"},
                "total": {"type": "integer"},
                "attendanceRate": {"type": "string"}
            }
        },
        "TeacherAttendanceResponse": {
            "type": "object",
            "properties": {
                "attendance": {"type": "array", "items": {"$ref": "#/definitions/DailyEntry"}},
                "stats": {"$ref": "#/definitions/DailyStats"},
                "trends": {"type": "object"},
                "performance": {"type": "object"},
                "date": {"type": "string", "format": "date"}
            }
        },
        "ResetResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "deletedCount": {"type": "integer"},
                "sessionsPurged": {"type": "integer"}
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
