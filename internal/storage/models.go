package storage

import (
	"time"

	"gorm.io/gorm"
)

type StationReading struct {
	gorm.Model
	Timestamp time.Time `gorm:"index" json:"timestamp"`

	// Station
	StationID     string `gorm:"index" json:"station_id"`
	SerialNumber  string `json:"serial_number"`
	DataTimestamp string `json:"data_timestamp"`

	// Battery
	BatteryPercent      float64 `json:"battery_percent"`
	BatteryPower        float64 `json:"battery_power"`
	BatteryPowerUnit    string  `json:"battery_power_unit"`
	BatteryChargeEnergy float64 `json:"battery_charge_energy"`

	// Generation
	Power         float64 `json:"power"`
	PowerUnit     string  `json:"power_unit"`
	PowerPercent  float64 `json:"power_percent"`
	DayEnergy     float64 `json:"day_energy"`
	DayEnergyUnit string  `json:"day_energy_unit"`

	// Grid and load
	Psum      float64 `json:"psum"`
	PsumUnit  string  `json:"psum_unit"`
	TotalLoad float64 `json:"total_load"`
}
