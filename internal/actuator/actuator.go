// Package actuator abstracts the remote drone control backend. The engine
// treats it as an opaque, possibly slow, possibly failing call; timeouts are
// imposed by the caller through ctx.
package actuator

import (
	"context"

	"github.com/skyops/dronectl/internal/model"
)

// Invoker performs one actuator operation. A returned error means the call
// itself failed (transport, timeout, cancellation); a false Success in the
// outcome means the backend executed and rejected the command.
type Invoker interface {
	Invoke(ctx context.Context, action string, params map[string]any) (model.OperationOutcome, error)
}
