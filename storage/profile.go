// Package storage persists the player profile: coin and essence balances and
// the essence-unlock ledger shared by every unit.
package storage

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type profileRecord struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"uniqueIndex;size:64"`
	Coins     int
	Essence   int
	UpdatedAt time.Time
}

func (profileRecord) TableName() string { return "profiles" }

type essenceUnlock struct {
	ID        uint   `gorm:"primarykey"`
	ProfileID uint   `gorm:"uniqueIndex:idx_profile_upgrade"`
	UpgradeID string `gorm:"uniqueIndex:idx_profile_upgrade;size:64"`
	CreatedAt time.Time
}

func (essenceUnlock) TableName() string { return "essence_unlocks" }

// Options configure Open.
type Options struct {
	Path            string // sqlite file; empty = private in-memory database
	Profile         string // profile name; empty = "default"
	StartingCoins   int    // balances for a newly created profile
	StartingEssence int
	Logger          *slog.Logger
}

// Profile holds balances in memory and writes them back on Checkpoint. It
// satisfies upgrades.CurrencyLedger, upgrades.Spender and
// upgrades.Persistence. Not safe for concurrent use.
type Profile struct {
	db     *gorm.DB
	logger *slog.Logger

	id       uint
	name     string
	coins    int
	essence  int
	unlocked map[string]bool
	pending  []string

	checkpoints int
	failures    int
}

func openDB(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		// Named shared-cache memory db so every pooled connection sees the same data.
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", dsn, err)
	}
	if err := db.AutoMigrate(&profileRecord{}, &essenceUnlock{}); err != nil {
		return nil, fmt.Errorf("migrating profile tables: %w", err)
	}
	return db, nil
}

// Open connects to the profile database, creating the named profile with the
// starting balances if it does not exist yet.
func Open(opts Options) (*Profile, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.Profile
	if name == "" {
		name = "default"
	}

	db, err := openDB(opts.Path)
	if err != nil {
		return nil, err
	}

	rec := profileRecord{Name: name}
	err = db.Where(profileRecord{Name: name}).
		Attrs(profileRecord{Coins: opts.StartingCoins, Essence: opts.StartingEssence}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("loading profile %q: %w", name, err)
	}

	var unlocks []essenceUnlock
	if err := db.Where("profile_id = ?", rec.ID).Find(&unlocks).Error; err != nil {
		return nil, fmt.Errorf("loading essence unlocks: %w", err)
	}

	p := &Profile{
		db:       db,
		logger:   logger,
		id:       rec.ID,
		name:     rec.Name,
		coins:    rec.Coins,
		essence:  rec.Essence,
		unlocked: make(map[string]bool, len(unlocks)),
	}
	for _, u := range unlocks {
		p.unlocked[u.UpgradeID] = true
	}

	logger.Info("profile_opened",
		"profile", name,
		"path", opts.Path,
		"coins", p.coins,
		"essence", p.essence,
		"unlocks", len(p.unlocked),
	)
	return p, nil
}

// Name returns the profile name.
func (p *Profile) Name() string { return p.name }

func (p *Profile) CoinBalance() int    { return p.coins }
func (p *Profile) EssenceBalance() int { return p.essence }

func (p *Profile) IsEssenceUnlocked(id string) bool {
	return p.unlocked[id]
}

// Spend deducts both amounts, or nothing if either balance is short.
func (p *Profile) Spend(coins, essence int) bool {
	if coins < 0 || essence < 0 || coins > p.coins || essence > p.essence {
		return false
	}
	p.coins -= coins
	p.essence -= essence
	return true
}

// UnlockEssence adds id to the unlock ledger. It is written on the next
// Checkpoint.
func (p *Profile) UnlockEssence(id string) {
	if id == "" || p.unlocked[id] {
		return
	}
	p.unlocked[id] = true
	p.pending = append(p.pending, id)
}

// AddCoins credits income. Negative amounts are ignored.
func (p *Profile) AddCoins(n int) {
	if n > 0 {
		p.coins += n
	}
}

// AddEssence credits essence. Negative amounts are ignored.
func (p *Profile) AddEssence(n int) {
	if n > 0 {
		p.essence += n
	}
}

// Unlocked returns the unlocked upgrade ids, sorted.
func (p *Profile) Unlocked() []string {
	ids := make([]string, 0, len(p.unlocked))
	for id := range p.unlocked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Checkpoint writes balances and new unlocks in one transaction. Failures
// are logged and the pending unlocks are retried on the next call.
func (p *Profile) Checkpoint() {
	err := p.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&profileRecord{}).
			Where("id = ?", p.id).
			Updates(map[string]any{"coins": p.coins, "essence": p.essence, "updated_at": time.Now()}).
			Error
		if err != nil {
			return fmt.Errorf("updating balances: %w", err)
		}
		for _, id := range p.pending {
			row := essenceUnlock{ProfileID: p.id, UpgradeID: id}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("recording unlock %q: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		p.failures++
		p.logger.Warn("checkpoint_failed", "profile", p.name, "error", err)
		return
	}
	p.pending = p.pending[:0]
	p.checkpoints++
}

// Checkpoints returns how many checkpoints committed.
func (p *Profile) Checkpoints() int { return p.checkpoints }

// Failures returns how many checkpoints failed.
func (p *Profile) Failures() int { return p.failures }

// Close flushes a final checkpoint and closes the database.
func (p *Profile) Close() error {
	p.Checkpoint()
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql handle: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("closing profile db: %w", err)
	}
	return nil
}
