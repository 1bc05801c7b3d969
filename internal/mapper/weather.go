package mapper

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kjstillabower/farm-records-service/internal/models"
)

// DefaultCondition is used when a forecast record has no condition.
const DefaultCondition = "sunny"

// DefaultTemperature is used whenever temperature_c cannot be decoded.
var DefaultTemperature = models.Temperature{High: 75, Low: 60}

// ForecastEntryFromRecord maps one weather_c record.
func ForecastEntryFromRecord(raw []byte) models.ForecastEntry {
	r := gjson.ParseBytes(raw)
	condition := r.Get(fieldCondition).String()
	if condition == "" {
		condition = DefaultCondition
	}
	return models.ForecastEntry{
		ID:            int(r.Get(FieldID).Int()),
		Name:          r.Get(FieldName).String(),
		Date:          r.Get(fieldDate).String(),
		Condition:     condition,
		Humidity:      r.Get(fieldHumidity).Float(),
		Precipitation: r.Get(fieldPrecipitation).Float(),
		Temperature:   ParseTemperature(r.Get(fieldTemperature)),
	}
}

// ParseTemperature decodes temperature_c. The backend stores it either as an
// object or as text holding a JSON object; anything else, including malformed
// text, yields DefaultTemperature.
func ParseTemperature(field gjson.Result) models.Temperature {
	if field.IsObject() {
		return temperatureFrom(field)
	}
	if field.Type == gjson.String {
		return ParseTemperatureText(field.Str)
	}
	return DefaultTemperature
}

// ParseTemperatureText is ParseTemperature for a raw string value.
func ParseTemperatureText(s string) models.Temperature {
	if !strings.Contains(s, "{") || !gjson.Valid(s) {
		return DefaultTemperature
	}
	parsed := gjson.Parse(s)
	if !parsed.IsObject() {
		return DefaultTemperature
	}
	return temperatureFrom(parsed)
}

func temperatureFrom(obj gjson.Result) models.Temperature {
	return models.Temperature{
		High: obj.Get("high").Float(),
		Low:  obj.Get("low").Float(),
	}
}
