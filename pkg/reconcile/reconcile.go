// Package reconcile applies the override layer to raw source records.
//
// Reconciliation is pure: the caller reads the override snapshot once per
// load and passes the same snapshot for both sources, so a concurrent
// override write can never split one delivery across two snapshots.
package reconcile

import (
	"github.com/agentstation/shelf/pkg/overrides"
	"github.com/agentstation/shelf/pkg/records"
)

// Reconcile returns raw's payload with OnLoan set to the effective flag.
func Reconcile(raw records.Raw, snapshot overrides.Mapping) records.Record {
	r := raw.Base()
	r.OnLoan = overrides.Resolve(raw, snapshot)
	return r
}

// All reconciles raws in order. The result is never nil.
func All(raws []records.Raw, snapshot overrides.Mapping) []records.Record {
	out := make([]records.Record, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Reconcile(raw, snapshot))
	}
	return out
}

// Overridden reports whether snapshot holds an entry for raw, i.e. whether
// the effective flag comes from the override layer rather than the source.
func Overridden(raw records.Raw, snapshot overrides.Mapping) bool {
	_, ok := snapshot[raw.Base().Key().String()]
	return ok
}
