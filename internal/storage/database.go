package storage

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"solarwatch/internal/alert"
	"solarwatch/internal/health"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&AlertCounter{}, &SerialMapping{}, &HealthRun{}, &InverterResult{}, &AlertEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// LoadCounters implements alert.CounterStore. Inverters with no row are
// simply absent; the gate treats them as zero.
func (d *Database) LoadCounters() (map[string]int, error) {
	var rows []AlertCounter
	if err := d.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	counters := make(map[string]int, len(rows))
	for _, row := range rows {
		counters[row.Name] = row.Count
	}
	return counters, nil
}

// SaveCounters implements alert.CounterStore, replacing the stored set.
func (d *Database) SaveCounters(counters map[string]int) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&AlertCounter{}).Error; err != nil {
			return err
		}
		for name, count := range counters {
			if err := tx.Create(&AlertCounter{Name: name, Count: count}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadSerials returns the learned inverter name to serial mapping.
func (d *Database) LoadSerials() (map[string]string, error) {
	var rows []SerialMapping
	if err := d.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	serials := make(map[string]string, len(rows))
	for _, row := range rows {
		serials[row.Name] = row.Serial
	}
	return serials, nil
}

// SaveSerials replaces the stored mapping; callers always write the
// full learned set.
func (d *Database) SaveSerials(serials map[string]string) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&SerialMapping{}).Error; err != nil {
			return err
		}
		for name, serial := range serials {
			if err := tx.Create(&SerialMapping{Name: name, Serial: serial}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveHealthRun persists one cycle's verdict plus its per-inverter rows.
func (d *Database) SaveHealthRun(sys health.SystemHealth, alertCount int, at time.Time) error {
	run := &HealthRun{
		Timestamp:  at,
		SystemOK:   sys.OK,
		Reason:     sys.Reason,
		AlertCount: alertCount,
	}

	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		for _, name := range health.SortedNames(sys.PerInverter) {
			inv := sys.PerInverter[name]
			row := InverterResult{
				RunID:     run.ID,
				Timestamp: at,
				Name:      inv.Name,
				OK:        inv.OK,
				Kind:      inv.Kind.String(),
				Reason:    inv.Reason,
			}
			if r := inv.Reading; r != nil {
				row.Serial = r.Serial
				row.Status = r.Status
				row.PacW = r.PacW
				row.VdcV = r.VdcV
				row.IdcA = r.IdcA
				row.TotalWh = r.TotalWh
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Database) SaveAlerts(alerts []alert.Alert) error {
	for _, a := range alerts {
		row := AlertEvent{
			Timestamp:    a.At,
			InverterName: a.InverterName,
			Serial:       a.Serial,
			Message:      a.Message,
			Status:       a.Status,
			PacW:         a.PacW,
		}
		if err := d.db.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) LatestHealthRun() (*HealthRun, error) {
	var run HealthRun
	if err := d.db.Order("timestamp desc").First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (d *Database) RecentHealthRuns(limit int) ([]HealthRun, error) {
	var runs []HealthRun
	if err := d.db.Order("timestamp desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (d *Database) ResultsForRun(runID uint) ([]InverterResult, error) {
	var rows []InverterResult
	if err := d.db.Where("run_id = ?", runID).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Database) RecentAlerts(limit int) ([]AlertEvent, error) {
	var rows []AlertEvent
	if err := d.db.Order("timestamp desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Prune deletes history past the retention windows. Counters are never
// pruned; they are live state, not history.
func (d *Database) Prune(runRetentionDays, snapshotRetentionDays int) error {
	now := time.Now()

	runCutoff := now.AddDate(0, 0, -runRetentionDays)
	if err := d.db.Where("timestamp < ?", runCutoff).Delete(&HealthRun{}).Error; err != nil {
		return err
	}
	if err := d.db.Where("timestamp < ?", runCutoff).Delete(&AlertEvent{}).Error; err != nil {
		return err
	}

	snapCutoff := now.AddDate(0, 0, -snapshotRetentionDays)
	return d.db.Where("timestamp < ?", snapCutoff).Delete(&InverterResult{}).Error
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
