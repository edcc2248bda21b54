// Package api holds the HTTP API description served by the server.
package api

import _ "embed"

// OpenAPIYAML is the OpenAPI 3 document for the HTTP API
//
//go:embed openapi/openapi.yaml
var OpenAPIYAML []byte
