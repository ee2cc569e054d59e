package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func registerSwaggerRoutes(r chi.Router) {
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
	})

	r.Get("/swagger/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, swaggerHTML, "/swagger/openapi.json")
	})

	r.Get("/swagger/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(openAPI))
	})
}

const swaggerHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Escrow Engine API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      window.ui = SwaggerUIBundle({
        url: "%s",
        dom_id: "#swagger-ui"
      });
    };
  </script>
</body>
</html>`

const openAPI = `{
  "openapi": "3.0.3",
  "info": {
    "title": "Escrow Engine API",
    "version": "1.0.0"
  },
  "security": [{ "BasicAuth": [] }],
  "paths": {
    "/health": {
      "get": { "summary": "Liveness", "security": [], "responses": { "200": { "description": "OK" } } }
    },
    "/api/v1/accounts": {
      "post": {
        "summary": "Create escrow account (idempotent per user, provider and currency)",
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "$ref": "#/components/schemas/CreateEscrowAccountRequest" } } } },
        "responses": { "201": { "description": "Account" }, "400": { "description": "Validation failed" }, "401": { "description": "Unauthorized" } }
      }
    },
    "/api/v1/accounts/{accountID}": {
      "get": {
        "summary": "Get account",
        "parameters": [{ "$ref": "#/components/parameters/AccountID" }],
        "responses": { "200": { "description": "Account" }, "404": { "description": "Not found" } }
      }
    },
    "/api/v1/accounts/{accountID}/activate": {
      "post": {
        "summary": "Activate account",
        "parameters": [{ "$ref": "#/components/parameters/AccountID" }],
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "$ref": "#/components/schemas/ActorRequest" } } } },
        "responses": { "200": { "description": "Account" }, "409": { "description": "Invalid transition" } }
      }
    },
    "/api/v1/accounts/{accountID}/suspend": {
      "post": {
        "summary": "Suspend account",
        "parameters": [{ "$ref": "#/components/parameters/AccountID" }],
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "$ref": "#/components/schemas/ActorRequest" } } } },
        "responses": { "200": { "description": "Account" }, "409": { "description": "Invalid transition" } }
      }
    },
    "/api/v1/accounts/{accountID}/close": {
      "post": {
        "summary": "Close account (balances must be zero)",
        "parameters": [{ "$ref": "#/components/parameters/AccountID" }],
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "$ref": "#/components/schemas/ActorRequest" } } } },
        "responses": { "200": { "description": "Account" }, "409": { "description": "Invalid transition" } }
      }
    },
    "/api/v1/accounts/{accountID}/reconcile": {
      "get": {
        "summary": "Recompute balances from the ledger and compare with the account",
        "parameters": [{ "$ref": "#/components/parameters/AccountID" }],
        "responses": { "200": { "description": "Balances match" }, "409": { "description": "Mismatch, result included" } }
      }
    },
    "/api/v1/accounts/{accountID}/ledger": {
      "get": {
        "summary": "Page through ledger entries",
        "parameters": [
          { "$ref": "#/components/parameters/AccountID" },
          { "name": "book", "in": "query", "schema": { "type": "string", "enum": ["escrow", "wallet"] } },
          { "name": "after", "in": "query", "schema": { "type": "integer", "format": "int64" } },
          { "name": "limit", "in": "query", "schema": { "type": "integer", "maximum": 500 } }
        ],
        "responses": { "200": { "description": "Ledger page" } }
      }
    },
    "/api/v1/accounts/{accountID}/holds": {
      "post": {
        "summary": "Hold funds (idempotent per reference)",
        "parameters": [{ "$ref": "#/components/parameters/AccountID" }],
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "$ref": "#/components/schemas/HoldFundsRequest" } } } },
        "responses": { "201": { "description": "Transaction" }, "409": { "description": "Account not active" }, "503": { "description": "Resource busy, retry" } }
      }
    },
    "/api/v1/accounts/{accountID}/transactions": {
      "get": {
        "summary": "List transactions of an account",
        "parameters": [
          { "$ref": "#/components/parameters/AccountID" },
          { "name": "state", "in": "query", "schema": { "type": "string" } },
          { "name": "reference", "in": "query", "schema": { "type": "string" } }
        ],
        "responses": { "200": { "description": "Transactions" } }
      }
    },
    "/api/v1/transactions/{transactionID}": {
      "get": {
        "summary": "Get transaction",
        "parameters": [{ "$ref": "#/components/parameters/TransactionID" }],
        "responses": { "200": { "description": "Transaction" }, "404": { "description": "Not found" } }
      }
    },
    "/api/v1/transactions/{transactionID}/release": {
      "post": {
        "summary": "Release held funds to the wallet",
        "parameters": [{ "$ref": "#/components/parameters/TransactionID" }],
        "requestBody": { "content": { "application/json": { "schema": { "$ref": "#/components/schemas/TransitionRequest" } } } },
        "responses": { "200": { "description": "Transaction" }, "409": { "description": "Invalid transition" } }
      }
    },
    "/api/v1/transactions/{transactionID}/refund": {
      "post": {
        "summary": "Refund held funds",
        "parameters": [{ "$ref": "#/components/parameters/TransactionID" }],
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "$ref": "#/components/schemas/TransitionRequest" } } } },
        "responses": { "200": { "description": "Transaction" }, "409": { "description": "Invalid transition" } }
      }
    },
    "/api/v1/transactions/{transactionID}/dispute": {
      "post": {
        "summary": "Open a dispute",
        "parameters": [{ "$ref": "#/components/parameters/TransactionID" }],
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "$ref": "#/components/schemas/TransitionRequest" } } } },
        "responses": { "200": { "description": "Transaction" }, "409": { "description": "Invalid transition" } }
      }
    },
    "/api/v1/transactions/{transactionID}/resolve": {
      "post": {
        "summary": "Resolve a dispute by releasing or refunding",
        "parameters": [{ "$ref": "#/components/parameters/TransactionID" }],
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "$ref": "#/components/schemas/ResolveDisputeRequest" } } } },
        "responses": { "200": { "description": "Transaction" }, "409": { "description": "Invalid transition" } }
      }
    },
    "/api/v1/transactions/{transactionID}/metadata": {
      "patch": {
        "summary": "Merge metadata keys",
        "parameters": [{ "$ref": "#/components/parameters/TransactionID" }],
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "$ref": "#/components/schemas/AnnotateRequest" } } } },
        "responses": { "200": { "description": "Transaction" } }
      }
    },
    "/api/v1/scheduler/tick": {
      "post": {
        "summary": "Run one scheduled release pass",
        "requestBody": { "content": { "application/json": { "schema": { "$ref": "#/components/schemas/TickRequest" } } } },
        "responses": { "200": { "description": "Tick result" } }
      }
    },
    "/api/v1/fee-tiers": {
      "get": { "summary": "List fee tiers", "responses": { "200": { "description": "Fee tiers" } } },
      "put": {
        "summary": "Create or update a fee tier",
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "$ref": "#/components/schemas/FeeTierRequest" } } } },
        "responses": { "200": { "description": "Fee tier" }, "422": { "description": "Configuration error" } }
      }
    },
    "/api/v1/fee-tiers/{id}": {
      "delete": {
        "summary": "Deactivate a fee tier",
        "parameters": [{ "name": "id", "in": "path", "required": true, "schema": { "type": "string" } }],
        "responses": { "200": { "description": "Fee tier" } }
      }
    },
    "/api/v1/release-policies": {
      "get": { "summary": "List release policies", "responses": { "200": { "description": "Release policies" } } },
      "put": {
        "summary": "Create or update a release policy",
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "$ref": "#/components/schemas/ReleasePolicyRequest" } } } },
        "responses": { "200": { "description": "Release policy" }, "422": { "description": "Configuration error" } }
      }
    },
    "/api/v1/release-policies/{id}": {
      "delete": {
        "summary": "Deactivate a release policy",
        "parameters": [{ "name": "id", "in": "path", "required": true, "schema": { "type": "string" } }],
        "responses": { "200": { "description": "Release policy" } }
      }
    }
  },
  "components": {
    "securitySchemes": {
      "BasicAuth": { "type": "http", "scheme": "basic" }
    },
    "parameters": {
      "AccountID": { "name": "accountID", "in": "path", "required": true, "schema": { "type": "string" } },
      "TransactionID": { "name": "transactionID", "in": "path", "required": true, "schema": { "type": "string" } }
    },
    "schemas": {
      "CreateEscrowAccountRequest": {
        "type": "object",
        "required": ["userId", "provider", "currency"],
        "properties": {
          "userId": { "type": "string" },
          "provider": { "type": "string", "enum": ["stripe", "escrow_com", "internal"] },
          "currency": { "type": "string", "example": "USD" }
        }
      },
      "ActorRequest": {
        "type": "object",
        "required": ["actorId"],
        "properties": { "actorId": { "type": "string" } }
      },
      "HoldFundsRequest": {
        "type": "object",
        "required": ["grossAmount", "reference"],
        "properties": {
          "grossAmount": { "type": "integer", "format": "int64", "description": "Minor units" },
          "reference": { "type": "string", "maxLength": 128 },
          "metadata": { "type": "object", "additionalProperties": { "type": "string" } }
        }
      },
      "TransitionRequest": {
        "type": "object",
        "properties": { "actorId": { "type": "string" }, "reason": { "type": "string" } }
      },
      "ResolveDisputeRequest": {
        "type": "object",
        "required": ["actorId", "outcome"],
        "properties": { "actorId": { "type": "string" }, "outcome": { "type": "string", "enum": ["released", "refunded"] } }
      },
      "AnnotateRequest": {
        "type": "object",
        "required": ["metadata"],
        "properties": { "metadata": { "type": "object", "additionalProperties": { "type": "string" } } }
      },
      "TickRequest": {
        "type": "object",
        "properties": { "now": { "type": "string", "format": "date-time" } }
      },
      "FeeTierRequest": {
        "type": "object",
        "required": ["provider", "currency", "percentFee"],
        "properties": {
          "id": { "type": "string" },
          "provider": { "type": "string" },
          "currency": { "type": "string" },
          "minimumAmount": { "type": "integer", "format": "int64" },
          "maximumAmount": { "type": "integer", "format": "int64", "nullable": true },
          "percentFee": { "type": "string", "example": "2.5" },
          "flatFee": { "type": "integer", "format": "int64" },
          "status": { "type": "string", "enum": ["active", "inactive"] }
        }
      },
      "ReleasePolicyRequest": {
        "type": "object",
        "required": ["policyType"],
        "properties": {
          "id": { "type": "string" },
          "policyType": { "type": "string", "enum": ["threshold_amount", "threshold_hours", "manual_only"] },
          "provider": { "type": "string" },
          "currency": { "type": "string" },
          "thresholdAmount": { "type": "integer", "format": "int64", "nullable": true },
          "thresholdHours": { "type": "integer", "format": "int64", "nullable": true },
          "requiresComplianceHold": { "type": "boolean" },
          "requiresManualApproval": { "type": "boolean" },
          "orderIndex": { "type": "integer" },
          "status": { "type": "string", "enum": ["active", "inactive"] }
        }
      }
    }
  }
}`
