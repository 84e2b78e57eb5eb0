package storage

import (
	"fmt"
	"time"

	"solis-monitor/internal/sensor"
	"solis-monitor/internal/solis"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
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

	// Auto-migrate the schema
	if err := db.AutoMigrate(&StationReading{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) SaveReading(data *solis.StationDetail, polledAt time.Time) error {
	reading := &StationReading{
		Timestamp:           polledAt,
		StationID:           data.ID,
		SerialNumber:        data.SerialNumber,
		DataTimestamp:       data.DataTimestamp,
		BatteryPercent:      data.BatteryPercent,
		BatteryPower:        data.BatteryPower,
		BatteryPowerUnit:    data.BatteryPowerStr,
		BatteryChargeEnergy: data.BatteryChargeEnergy,
		Power:               data.Power,
		PowerUnit:           data.PowerStr,
		PowerPercent:        data.PowerPercent,
		DayEnergy:           data.DayEnergy,
		DayEnergyUnit:       data.DayEnergyStr,
		Psum:                data.Psum,
		PsumUnit:            data.PsumStr,
		TotalLoad:           sensor.TotalLoad(data),
	}

	return d.db.Create(reading).Error
}

func (d *Database) GetLatestReading() (*StationReading, error) {
	var reading StationReading
	result := d.db.Order("timestamp desc").First(&reading)
	if result.Error != nil {
		return nil, result.Error
	}
	return &reading, nil
}

func (d *Database) GetReadingsByRange(from, to time.Time) ([]StationReading, error) {
	var readings []StationReading
	result := d.db.Where("timestamp BETWEEN ? AND ?", from, to).
		Order("timestamp desc").
		Find(&readings)
	if result.Error != nil {
		return nil, result.Error
	}
	return readings, nil
}

func (d *Database) GetReadingsWithLimit(limit int) ([]StationReading, error) {
	var readings []StationReading
	result := d.db.Order("timestamp desc").Limit(limit).Find(&readings)
	if result.Error != nil {
		return nil, result.Error
	}
	return readings, nil
}

// CleanOldReadings removes readings polled before now minus olderThan and
// returns how many were deleted.
func (d *Database) CleanOldReadings(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := d.db.Unscoped().Where("timestamp < ?", cutoff).Delete(&StationReading{})
	return result.RowsAffected, result.Error
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
