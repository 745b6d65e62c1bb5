// Package forecast is the one CRUD resource the API exposes.  Every
// tenant database carries its own `forecasts` table, created by the
// 20241202062205_initial2 migration and seeded with three rows.
package forecast

import (
	"encoding/json"
	"time"
)

// Summaries is the pool a new forecast's summary is drawn from.
var Summaries = []string{"Sweltering", "Chilly", "Cool", "Warn"}

// Temperature bounds for generated forecasts, [MinTempC, MaxTempC).
const (
	MinTempC = -20
	MaxTempC = 55
)

// Forecast mirrors one row in `forecasts`.
type Forecast struct {
	ID           int64     `db:"id"`
	Date         time.Time `db:"date"`
	TemperatureC int       `db:"temperature_c"`
	Summary      string    `db:"summary"`
}

// TemperatureF converts TemperatureC with the integer approximation
// 32 + C/0.5556.
func (f Forecast) TemperatureF() int {
	return 32 + int(float64(f.TemperatureC)/0.5556)
}

type wire struct {
	ID           int64     `json:"id"`
	Date         time.Time `json:"date"`
	TemperatureC int       `json:"temperatureC"`
	TemperatureF int       `json:"temperatureF"`
	Summary      string    `json:"summary"`
}

// MarshalJSON adds the derived Fahrenheit value.
func (f Forecast) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{
		ID:           f.ID,
		Date:         f.Date,
		TemperatureC: f.TemperatureC,
		TemperatureF: f.TemperatureF(),
		Summary:      f.Summary,
	})
}
