package sensor

import "math"

// MinLightLevel is the smallest value a light-level gauge accepts.
const MinLightLevel = 0.0001

// epsilon nudges values sitting on a .x5 boundary upwards before rounding.
const epsilon = 2.220446049250313e-16

// ConvertPower maps a power value onto the positive domain of a light-level
// gauge, rounded to one decimal.
func ConvertPower(value float64) float64 {
	if value <= 0 {
		return MinLightLevel
	}

	v := math.Abs(math.Round((value+epsilon)*10) / 10)
	if v == 0 {
		return MinLightLevel
	}
	return v
}
