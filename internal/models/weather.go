package models

// Temperature is a daily high/low pair.
type Temperature struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// ForecastEntry is one day of the weather forecast.
type ForecastEntry struct {
	ID            int         `json:"Id"`
	Name          string      `json:"name,omitempty"`
	Date          string      `json:"date"`
	Condition     string      `json:"condition"`
	Humidity      float64     `json:"humidity"`
	Precipitation float64     `json:"precipitation"`
	Temperature   Temperature `json:"temperature"`
}
