package port

import (
	"context"

	"github.com/Wyydra/callcore/internal/core/domain"
)

// CallNotifier renders the current call to whatever UI is attached. It holds
// no state of its own and receives every record the store publishes.
type CallNotifier interface {
	NotifyCall(ctx context.Context, call domain.CallRecord) error
}
