package upgrades

import (
	"log/slog"
)

// CurrencyLedger reads the process-wide balances and the essence-unlock
// ledger.
type CurrencyLedger interface {
	CoinBalance() int
	EssenceBalance() int
	IsEssenceUnlocked(id string) bool
}

// Spender is the optional write side of a CurrencyLedger, used by
// Engine.Purchase.
type Spender interface {
	// Spend deducts both amounts or neither.
	Spend(coins, essence int) bool
	// UnlockEssence records id in the essence-unlock ledger.
	UnlockEssence(id string)
}

// Persistence is notified after every successful Buy.
type Persistence interface {
	Checkpoint()
}

// SlimeCounter returns the live count of slimes of a type.
type SlimeCounter func(slimeType string) int

// Dependencies are the external collaborators of an Engine. Any of them may
// be nil: a nil ledger reads as zero balances with nothing unlocked.
type Dependencies struct {
	Ledger      CurrencyLedger
	Persistence Persistence
	Logger      *slog.Logger
}

// Engine validates and applies upgrades for one unit.
type Engine struct {
	target Target
	state  *PurchaseState
	deps   Dependencies
	logger *slog.Logger
}

// NewEngine creates an engine with an empty purchase state for target.
func NewEngine(target Target, deps Dependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		target: target,
		state:  NewPurchaseState(),
		deps:   deps,
		logger: logger,
	}
}

// State returns the unit's purchase record.
func (e *Engine) State() *PurchaseState {
	return e.state
}

// Target returns the unit the engine mutates.
func (e *Engine) Target() Target {
	return e.target
}

// CanBuy reports whether def may be bought now. It never mutates anything.
func (e *Engine) CanBuy(def *Definition, availableCoins int, slimes SlimeCounter) bool {
	if def == nil || e.target == nil {
		return false
	}
	if def.UnitType != e.target.UnitType() || e.state.Has(def.ID) {
		return false
	}

	if !e.unlocked(def.ID) {
		if availableCoins < def.CoinCost || e.essenceBalance() < def.EssenceCost {
			return false
		}
	}

	for slimeType, need := range def.SlimeRequirements {
		if countSlimes(slimes, slimeType) < need {
			return false
		}
	}
	for _, pre := range def.Prerequisites {
		if !e.state.Has(pre) {
			return false
		}
	}
	return !e.state.PathBlocked(def.Tier, def.Path)
}

// Buy applies def without re-validating costs or prerequisites. It returns
// false only for a nil or already purchased definition. Effects that find
// nothing to change are skipped and the purchase still completes.
func (e *Engine) Buy(def *Definition) bool {
	if def == nil || e.state.Has(def.ID) {
		return false
	}

	for i, eff := range def.Effects {
		if !eff.Apply(e.target) {
			e.logger.Debug("effect had no target",
				"upgrade", def.ID,
				"index", i,
				"effect", eff.String(),
			)
		}
	}

	committed := e.state.record(def)
	if e.deps.Persistence != nil {
		e.deps.Persistence.Checkpoint()
	}

	e.logger.Info("upgrade_purchased",
		"unit_type", def.UnitType,
		"upgrade", def.ID,
		"tier", def.Tier,
		"path", def.Path,
		"committed", committed,
	)
	return true
}

// Purchase validates against the ledger's coin balance, spends, and buys in
// one call. Items already unlocked with essence are free. A ledger without
// the Spender capability can only cover free purchases.
func (e *Engine) Purchase(def *Definition, slimes SlimeCounter) bool {
	if !e.CanBuy(def, e.coinBalance(), slimes) {
		return false
	}

	if !e.unlocked(def.ID) && (def.CoinCost > 0 || def.EssenceCost > 0) {
		spender, ok := e.deps.Ledger.(Spender)
		if !ok || !spender.Spend(def.CoinCost, def.EssenceCost) {
			e.logger.Debug("purchase not paid", "upgrade", def.ID)
			return false
		}
		if def.EssenceCost > 0 {
			spender.UnlockEssence(def.ID)
		}
	}
	return e.Buy(def)
}

func (e *Engine) unlocked(id string) bool {
	return e.deps.Ledger != nil && e.deps.Ledger.IsEssenceUnlocked(id)
}

func (e *Engine) coinBalance() int {
	if e.deps.Ledger == nil {
		return 0
	}
	return e.deps.Ledger.CoinBalance()
}

func (e *Engine) essenceBalance() int {
	if e.deps.Ledger == nil {
		return 0
	}
	return e.deps.Ledger.EssenceBalance()
}

func countSlimes(slimes SlimeCounter, slimeType string) int {
	if slimes == nil {
		return 0
	}
	return slimes(slimeType)
}
