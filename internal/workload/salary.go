package workload

import "math"

// Salary multiplies total hours by the hourly rate. It returns nil while the
// rate is not configured; the value is not rounded.
func Salary(totalHours int, hourlyRate *float64) *float64 {
	if hourlyRate == nil {
		return nil
	}
	rate := *hourlyRate
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil
	}
	amount := rate * float64(totalHours)
	return &amount
}
