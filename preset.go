package rpc

import "fmt"

// IB method and callback names wired by ForIB.
const (
	MethodHistoricalTicks  = "req_historical_ticks"
	MethodContractDetails  = "req_contract_details"
	MethodTickByTickData   = "req_tick_by_tick_data"
	MethodPositions        = "req_positions"
	MethodAccountUpdates   = "req_account_updates"
	EventContractDetailEnd = "contract_details_end"
)

// ForIB returns the registry for the Interactive Brokers callbacks this
// proxy understands. The error event is shared: IB reports every failure
// through one callback whose first argument is the request id, -1 when the
// message concerns no request. Those go to the unkeyed streams. Streams
// hand errors to their listener rather than raising them, since any error
// would otherwise interrupt the event consumer.
//
// Options that make the wiring inconsistent, such as an error event that
// collides with a data event, are reported as an error.
func ForIB(opts ...RegistryOption) (*Registry, error) {
	r := NewRegistry(append([]RegistryOption{WithSharedErrorEvent(), WithUnownedErrorKey(-1)}, opts...)...)
	errorEvent := r.errorEvent

	registrations := []func() error{
		func() error {
			return r.RegisterSingleResponse(MethodHistoricalTicks,
				[]string{"historical_ticks", "historical_ticks_bid_ask", "historical_ticks_last", errorEvent}, 0)
		},
		func() error {
			return r.RegisterMultiResponse(MethodContractDetails,
				[]string{"contract_details", errorEvent}, EventContractDetailEnd, 0)
		},
		func() error {
			return r.RegisterStreaming(MethodTickByTickData,
				[]string{"tick_by_tick_bid_ask", "tick_by_tick_all_last", "tick_by_tick_mid_point", errorEvent}, 0,
				WithKeyedListeners(), WithErrorPolicy(PropagateAsEvent))
		},
		func() error {
			return r.RegisterStreaming(MethodPositions,
				[]string{"position", "position_end", errorEvent}, 0,
				WithErrorPolicy(PropagateAsEvent))
		},
		func() error {
			return r.RegisterStreaming(MethodAccountUpdates,
				[]string{"update_account_value", "update_portfolio", "update_account_time", "account_download_end", errorEvent}, 0,
				WithErrorPolicy(PropagateAsEvent))
		},
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return nil, fmt.Errorf("ib preset: %w", err)
		}
	}
	return r, nil
}
