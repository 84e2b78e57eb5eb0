package solis

// StationDetail is the data object returned by /v1/api/stationDetail.
// Only the fields the monitor reads are decoded.
type StationDetail struct {
	ID            string `json:"id"`
	SerialNumber  string `json:"sno"`
	StationName   string `json:"stationName"`
	DataTimestamp string `json:"dataTimestamp"`

	// Battery
	BatteryPercent      float64 `json:"batteryPercent"`
	BatteryPower        float64 `json:"batteryPower"`
	BatteryPowerStr     string  `json:"batteryPowerStr"`
	BatteryChargeEnergy float64 `json:"batteryChargeEnergy"`

	// Generation. The field name porwerPercent is the API's own spelling.
	Power        float64 `json:"power"`
	PowerStr     string  `json:"powerStr"`
	PowerPercent float64 `json:"porwerPercent"`
	DayEnergy    float64 `json:"dayEnergy"`
	DayEnergyStr string  `json:"dayEnergyStr"`

	// Grid, positive when exporting
	Psum    float64 `json:"psum"`
	PsumStr string  `json:"psumStr"`
}

type stationDetailRequest struct {
	ID string `json:"id"`
}

// envelope is the common response wrapper of the SolisCloud API.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Msg     string `json:"msg"`
	Data    *T     `json:"data"`
}
