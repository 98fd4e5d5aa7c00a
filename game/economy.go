package game

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slimekeep/telemetry"
)

// Buy attempts to purchase upgradeID for unit e and reports the outcome.
// A successful purchase re-attaches the unit's aura so upgraded radius or
// bonuses reach recipients on the next pass.
func (g *Game) Buy(e ecs.Entity, upgradeID string) telemetry.PurchaseOutcome {
	var unitID uint32
	var unitType string
	if g.world.Alive(e) && g.unitMap.Has(e) {
		u := g.unitMap.Get(e)
		unitID, unitType = u.ID, u.Type
	}

	def, ok := g.catalog.Get(upgradeID)
	if !ok {
		return g.recordPurchase(telemetry.NewPurchaseRecord(g.tick, unitID, unitType, upgradeID, telemetry.OutcomeUnknown))
	}
	eng, ok := g.engines[e]
	if !ok || !g.isAlive(e) {
		rec := telemetry.NewPurchaseRecord(g.tick, unitID, unitType, upgradeID, telemetry.OutcomeNoEngine)
		rec.Tier, rec.Path = def.Tier, def.Path
		return g.recordPurchase(rec)
	}

	coins, essence := g.profile.CoinBalance(), g.profile.EssenceBalance()
	outcome := telemetry.OutcomeRefused
	if eng.Purchase(def, g.SlimeCount) {
		outcome = telemetry.OutcomeBought
		if cfg, ok := g.auraConfigs[e]; ok {
			g.auras.Attach(e, *cfg)
		}
	}
	g.lifetimeTracker.RecordPurchase(unitID, outcome == telemetry.OutcomeBought,
		coins-g.profile.CoinBalance(), essence-g.profile.EssenceBalance())

	rec := telemetry.NewPurchaseRecord(g.tick, unitID, unitType, upgradeID, outcome)
	rec.Tier, rec.Path = def.Tier, def.Path
	if path, ok := eng.State().CommittedPath(); ok {
		rec.CommittedPath = path
	}
	return g.recordPurchase(rec)
}

func (g *Game) recordPurchase(rec telemetry.PurchaseRecord) telemetry.PurchaseOutcome {
	rec.CoinsAfter = g.profile.CoinBalance()
	rec.EssenceAfter = g.profile.EssenceBalance()

	bought := rec.Outcome == telemetry.OutcomeBought
	g.collector.RecordPurchase(bought)
	if bought {
		g.totalBought++
	} else {
		g.totalRefused++
		g.logger.Debug("purchase_refused",
			"unit", rec.UnitID,
			"upgrade", rec.Upgrade,
			"outcome", string(rec.Outcome),
			"coins", rec.CoinsAfter,
		)
	}

	if err := g.output.WritePurchase(rec); err != nil {
		g.logger.Error("failed to write purchase", "error", err)
	}
	return rec.Outcome
}

// updateIncome credits passive coin income in whole coins.
func (g *Game) updateIncome(dt float64) {
	rate := g.cfg.Economy.CoinsPerSecond
	if rate <= 0 {
		return
	}
	g.incomeAccum += rate * dt
	if whole := int(g.incomeAccum); whole > 0 {
		g.profile.AddCoins(whole)
		g.incomeAccum -= float64(whole)
	}
}
