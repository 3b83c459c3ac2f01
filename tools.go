//go:build tools

// developer tools pinned in go.mod:
//   - goose applies the internal/database/migrations outside the server
//   - sqlc regenerates internal/database from internal/database/queries (see sqlc.yaml)
//   - swag builds the OpenAPI document from the handler annotations
//   - gosec and staticcheck run in CI
package tools

import (
	_ "github.com/pressly/goose/v3/cmd/goose"
	_ "github.com/securego/gosec/v2/cmd/gosec"
	_ "github.com/sqlc-dev/sqlc/cmd/sqlc"
	_ "github.com/swaggo/swag/cmd/swag"
	_ "honnef.co/go/tools/cmd/staticcheck"
)
