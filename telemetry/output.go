package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/slimekeep/config"
)

// csvFile appends gocsv records, writing the header only once.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func createCSV(dir, name string) (*csvFile, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvFile{f: f}, nil
}

func (c *csvFile) write(records any) error {
	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir       string
	windows   *csvFile
	perf      *csvFile
	purchases *csvFile
	bookmarks *csvFile
	units     *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	var err error
	if om.windows, err = createCSV(dir, "windows.csv"); err != nil {
		return nil, err
	}
	if om.perf, err = createCSV(dir, "perf.csv"); err != nil {
		om.Close()
		return nil, err
	}
	if om.purchases, err = createCSV(dir, "purchases.csv"); err != nil {
		om.Close()
		return nil, err
	}
	if om.bookmarks, err = createCSV(dir, "bookmarks.csv"); err != nil {
		om.Close()
		return nil, err
	}
	if om.units, err = createCSV(dir, "units.csv"); err != nil {
		om.Close()
		return nil, err
	}
	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteWindow writes a window stats record to windows.csv.
func (om *OutputManager) WriteWindow(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := om.windows.write([]WindowStats{stats}); err != nil {
		return fmt.Errorf("writing window stats: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int32) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WritePurchase appends one purchase attempt to purchases.csv.
func (om *OutputManager) WritePurchase(rec PurchaseRecord) error {
	if om == nil {
		return nil
	}
	if err := om.purchases.write([]PurchaseRecord{rec}); err != nil {
		return fmt.Errorf("writing purchase: %w", err)
	}
	return nil
}

// WriteBookmark appends a bookmark to bookmarks.csv.
func (om *OutputManager) WriteBookmark(bm Bookmark) error {
	if om == nil {
		return nil
	}
	if err := om.bookmarks.write([]Bookmark{bm}); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// WriteUnit appends a finished unit's lifetime stats to units.csv.
func (om *OutputManager) WriteUnit(s *LifetimeStats) error {
	if om == nil || s == nil {
		return nil
	}
	if err := om.units.write([]*LifetimeStats{s}); err != nil {
		return fmt.Errorf("writing unit: %w", err)
	}
	return nil
}

// WriteBookmarkSnapshot saves a snapshot taken when bm fired under
// snapshots/.
func (om *OutputManager) WriteBookmarkSnapshot(s *Snapshot, bm Bookmark) error {
	if om == nil || s == nil {
		return nil
	}
	name := fmt.Sprintf("%s_%06d.json", bm.Type, bm.Tick)
	return s.Save(filepath.Join(om.dir, "snapshots", name))
}

// WriteSnapshot saves the end-of-run snapshot as snapshot.json.
func (om *OutputManager) WriteSnapshot(s *Snapshot) error {
	if om == nil || s == nil {
		return nil
	}
	return s.Save(filepath.Join(om.dir, "snapshot.json"))
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var firstErr error
	for _, c := range []*csvFile{om.windows, om.perf, om.purchases, om.bookmarks, om.units} {
		if c == nil {
			continue
		}
		if err := c.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
