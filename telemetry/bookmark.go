package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkHealSurge   BookmarkType = "heal_surge"
	BookmarkDamageSpike BookmarkType = "damage_spike"
	BookmarkAllyCrash   BookmarkType = "ally_crash"
	BookmarkLineHolding BookmarkType = "line_holding"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int32        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting windows in a run.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	recentAllyPeak int // peak ally count since the last crash
	holdingWindows int // consecutive healthy windows without deaths
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for line-holding detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		// Heal surge: healing > 2x rolling average
		if b := bd.checkHealSurge(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Damage spike: damage taken > 2x rolling average
		if b := bd.checkDamageSpike(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Ally crash: dropped >30% from recent peak
		if b := bd.checkAllyCrash(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	// Line holding: healthy allies with no deaths over 5 windows
	if b := bd.checkLineHolding(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)

	if stats.Allies > bd.recentAllyPeak {
		bd.recentAllyPeak = stats.Allies
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// rollingMean averages f over the stored history.
func (bd *BookmarkDetector) rollingMean(f func(WindowStats) float64) float64 {
	history := bd.getHistory()
	if len(history) == 0 {
		return 0
	}
	var total float64
	for _, h := range history {
		total += f(h)
	}
	return total / float64(len(history))
}

func (bd *BookmarkDetector) checkHealSurge(stats WindowStats) *Bookmark {
	if len(bd.getHistory()) < 3 {
		return nil
	}
	avg := bd.rollingMean(func(s WindowStats) float64 { return s.Healed })
	if avg == 0 {
		return nil
	}
	if stats.Healed > avg*2.0 && stats.Healed >= 10 {
		return &Bookmark{
			Type:        BookmarkHealSurge,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Healed %.1f is %.1fx average (%.1f)", stats.Healed, stats.Healed/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkDamageSpike(stats WindowStats) *Bookmark {
	if len(bd.getHistory()) < 3 {
		return nil
	}
	avg := bd.rollingMean(func(s WindowStats) float64 { return s.DamageTaken })
	if stats.DamageTaken < 20 {
		return nil
	}
	if avg == 0 || stats.DamageTaken > avg*2.0 {
		desc := fmt.Sprintf("Damage taken %.1f after a quiet stretch", stats.DamageTaken)
		if avg > 0 {
			desc = fmt.Sprintf("Damage taken %.1f is %.1fx average (%.1f)", stats.DamageTaken, stats.DamageTaken/avg, avg)
		}
		return &Bookmark{
			Type:        BookmarkDamageSpike,
			Tick:        stats.WindowEndTick,
			Description: desc,
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkAllyCrash(stats WindowStats) *Bookmark {
	if bd.recentAllyPeak == 0 {
		return nil
	}

	dropPercent := 1.0 - float64(stats.Allies)/float64(bd.recentAllyPeak)
	if dropPercent > 0.30 && stats.Allies <= bd.recentAllyPeak-2 {
		// Reset peak after crash
		oldPeak := bd.recentAllyPeak
		bd.recentAllyPeak = stats.Allies

		return &Bookmark{
			Type:        BookmarkAllyCrash,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Allies fell %.0f%% from peak %d to %d", dropPercent*100, oldPeak, stats.Allies),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkLineHolding(stats WindowStats) *Bookmark {
	if stats.Allies == 0 || stats.Deaths > 0 || stats.HealthMean < 0.9 {
		bd.holdingWindows = 0
		return nil
	}

	bd.holdingWindows++
	if bd.holdingWindows == 5 { // trigger exactly once per streak
		return &Bookmark{
			Type:        BookmarkLineHolding,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d allies above 90%% health for 5 windows", stats.Allies),
		}
	}
	return nil
}
