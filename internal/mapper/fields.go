// Package mapper translates between backend records (snake_case `_c` fields)
// and the domain models.
package mapper

// Backend tables.
const (
	TableCrop    = "crop_c"
	TableExpense = "expense_c"
	TableFarm    = "farm_c"
	TableTask    = "task_c"
	TableWeather = "weather_c"
)

// System fields present on every table.
const (
	FieldID   = "Id"
	FieldName = "Name"
)

// Shared relation field.
const FieldFarmID = "farm_id_c"

const (
	fieldCropType        = "crop_type_c"
	fieldPlantingDate    = "planting_date_c"
	fieldFieldLocation   = "field_location_c"
	fieldStatus          = "status_c"
	fieldExpectedHarvest = "expected_harvest_c"
	fieldNotes           = "notes_c"

	fieldAmount      = "amount_c"
	fieldCategory    = "category_c"
	fieldDate        = "date_c"
	fieldDescription = "description_c"

	fieldFarmName  = "name_c"
	fieldLocation  = "location_c"
	fieldSize      = "size_c"
	fieldUnit      = "unit_c"
	fieldCreatedAt = "created_at_c"

	fieldTitle       = "title_c"
	fieldDueDate     = "due_date_c"
	fieldPriority    = "priority_c"
	fieldCompleted   = "completed_c"
	fieldCompletedAt = "completed_at_c"

	fieldCondition     = "condition_c"
	fieldHumidity      = "humidity_c"
	fieldPrecipitation = "precipitation_c"
	fieldTemperature   = "temperature_c"
)

// FieldWeatherDate is the column the forecast is ordered by.
const FieldWeatherDate = fieldDate

// Field selections requested for each table.
var (
	CropFields = []string{
		FieldName, fieldCropType, fieldPlantingDate, fieldFieldLocation,
		fieldStatus, fieldExpectedHarvest, fieldNotes, FieldFarmID,
	}
	ExpenseFields = []string{
		FieldName, FieldFarmID, fieldAmount, fieldCategory, fieldDate, fieldDescription,
	}
	FarmFields = []string{
		FieldName, fieldFarmName, fieldLocation, fieldSize, fieldUnit, fieldCreatedAt,
	}
	TaskFields = []string{
		FieldName, fieldTitle, fieldDescription, fieldDueDate, fieldPriority,
		fieldCompleted, fieldCompletedAt, FieldFarmID,
	}
	WeatherFields = []string{
		FieldName, fieldCondition, fieldDate, fieldHumidity, fieldPrecipitation, fieldTemperature,
	}
)
