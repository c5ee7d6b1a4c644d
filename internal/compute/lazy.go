package compute

import "sync"

// BrokerProvider hands out the shared broker handle. The handle is stateless
// with respect to any individual request, so one instance serves all
// concurrent pipelines.
type BrokerProvider func() (Broker, error)

// LazyBroker defers broker construction to first use and guarantees the
// factory runs at most once even under concurrent first use. Duplicate
// initialization would open duplicate gateway sessions.
func LazyBroker(factory func() (Broker, error)) BrokerProvider {
	return sync.OnceValues(factory)
}
