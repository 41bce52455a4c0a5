package server

import (
	"database/sql"

	"github.com/onnwee/dexkeeper/recorder"
)

// GatewayStatus reports whether the chat gateway is connected.
type GatewayStatus interface {
	Connected() bool
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db      *sql.DB // nil when release lists are disabled
	engine  *recorder.Engine
	gateway GatewayStatus
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		db:      deps.DB,
		engine:  deps.Engine,
		gateway: deps.Gateway,
	}
}
