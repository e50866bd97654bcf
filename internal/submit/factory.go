package submit

import (
	"log/slog"
	"time"
)

// New returns a RelaySubmitter when a contract address is configured and a
// DemoSubmitter otherwise.
func New(writer ContractWriter, contract string, demoDelay time.Duration) Submitter {
	if contract == "" || writer == nil {
		slog.Warn("no batch contract configured, checkout runs in demo mode")
		return NewDemoSubmitter(demoDelay)
	}
	return NewRelaySubmitter(writer, contract)
}
