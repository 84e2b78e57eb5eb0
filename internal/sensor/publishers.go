package sensor

import (
	"fmt"
	"math"
	"strconv"

	"solis-monitor/internal/solis"
)

// LowBatteryPercent is the highest charge level still reported as low.
const LowBatteryPercent = 25

// Battery publishes charge level, low flag, charging flag and power label.
type Battery struct{}

func (Battery) Category() Category { return CategoryBattery }

func (Battery) Init(sink Sink) error {
	return sink.UpdateBattery(BatteryIdentity, BatteryState{Name: BatteryIdentity.Name})
}

func (Battery) Update(sink Sink, d *solis.StationDetail) error {
	return sink.UpdateBattery(BatteryIdentity, BatteryStateOf(d))
}

func BatteryStateOf(d *solis.StationDetail) BatteryState {
	state := BatteryState{
		Level:    d.BatteryPercent,
		Low:      d.BatteryPercent <= LowBatteryPercent,
		Charging: d.BatteryChargeEnergy > 0,
		Name:     "Battery",
	}
	if d.BatteryPower < 0 {
		state.Name = fmt.Sprintf("Battery: %s%s", strconv.FormatFloat(d.BatteryPower, 'f', -1, 64), d.BatteryPowerStr)
	}
	return state
}

// Solar publishes generation power and the generation ratio.
type Solar struct{}

func (Solar) Category() Category { return CategorySolar }

func (Solar) Init(sink Sink) error {
	return sink.UpdateLight(SolarIdentity, LightState{Level: MinLightLevel, Name: SolarIdentity.Name})
}

func (Solar) Update(sink Sink, d *solis.StationDetail) error {
	return sink.UpdateLight(SolarIdentity, SolarStateOf(d))
}

func SolarStateOf(d *solis.StationDetail) LightState {
	return LightState{
		Level: ConvertPower(d.Power),
		Name:  fmt.Sprintf("Solar: %.2f%%", d.PowerPercent*100),
	}
}

// Net publishes grid power; the sensor is active while exporting.
type Net struct{}

func (Net) Category() Category { return CategoryNet }

func (Net) Init(sink Sink) error {
	active := false
	return sink.UpdateLight(NetIdentity, LightState{Level: MinLightLevel, Name: NetIdentity.Name, Active: &active})
}

func (Net) Update(sink Sink, d *solis.StationDetail) error {
	return sink.UpdateLight(NetIdentity, NetStateOf(d))
}

func NetStateOf(d *solis.StationDetail) LightState {
	active := d.Psum > 0
	return LightState{
		Level:  ConvertPower(d.Psum),
		Name:   fmt.Sprintf("Net: %.3f%s", d.Psum, d.PsumStr),
		Active: &active,
	}
}

// Load publishes the household consumption.
type Load struct{}

func (Load) Category() Category { return CategoryLoad }

func (Load) Init(sink Sink) error {
	return sink.UpdateLight(LoadIdentity, LightState{Level: MinLightLevel, Name: LoadIdentity.Name})
}

func (Load) Update(sink Sink, d *solis.StationDetail) error {
	return sink.UpdateLight(LoadIdentity, LoadStateOf(d))
}

// TotalLoad is generation plus the battery's contribution minus net export.
// The battery term is taken as a magnitude in both directions.
func TotalLoad(d *solis.StationDetail) float64 {
	return d.Power + math.Abs(d.BatteryPower) - d.Psum
}

func LoadStateOf(d *solis.StationDetail) LightState {
	total := TotalLoad(d)
	return LightState{
		Level: ConvertPower(total),
		Name:  fmt.Sprintf("Usage: %.3f%s", total, d.PsumStr),
	}
}
