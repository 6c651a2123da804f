package reconcile

import (
	"net/http"

	"storefront/internal/adcatalog"
)

// Outcome is the per-record result of a run.
type Outcome string

const (
	OutcomeDeleted Outcome = "deleted"
	OutcomeError   Outcome = "error"
)

// Classify maps a catalog API reply to an outcome and, for errors, the
// detail to record.
//
// 400 and 404 count as deleted: the item is already gone upstream or its
// id is stale. 400 is broader than "gone" and may hide malformed requests.
func Classify(resp adcatalog.Response, err error) (Outcome, string) {
	if err != nil {
		return OutcomeError, err.Error()
	}
	switch {
	case resp.Success():
		return OutcomeDeleted, ""
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return OutcomeDeleted, ""
	default:
		return OutcomeError, resp.Detail()
	}
}
