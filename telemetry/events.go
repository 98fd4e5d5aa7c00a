// Package telemetry provides windowed run statistics, purchase logs,
// performance timing and end-of-run snapshots.
package telemetry

// PurchaseOutcome classifies a purchase attempt.
type PurchaseOutcome string

const (
	OutcomeBought   PurchaseOutcome = "bought"
	OutcomeRefused  PurchaseOutcome = "refused"
	OutcomeUnknown  PurchaseOutcome = "unknown_upgrade" // id not in the catalog
	OutcomeNoEngine PurchaseOutcome = "no_unit"         // unit gone or never spawned
)

// PurchaseRecord is one row of purchases.csv.
type PurchaseRecord struct {
	Tick          int32           `csv:"tick"`
	UnitID        uint32          `csv:"unit_id"`
	UnitType      string          `csv:"unit_type"`
	Upgrade       string          `csv:"upgrade"`
	Tier          int             `csv:"tier"`
	Path          int             `csv:"path"`
	Outcome       PurchaseOutcome `csv:"outcome"`
	CommittedPath int             `csv:"committed_path"` // -1 while uncommitted
	CoinsAfter    int             `csv:"coins_after"`
	EssenceAfter  int             `csv:"essence_after"`
}

// NewPurchaseRecord builds a record with no commitment.
func NewPurchaseRecord(tick int32, unitID uint32, unitType, upgrade string, outcome PurchaseOutcome) PurchaseRecord {
	return PurchaseRecord{
		Tick:          tick,
		UnitID:        unitID,
		UnitType:      unitType,
		Upgrade:       upgrade,
		Outcome:       outcome,
		CommittedPath: -1,
	}
}
