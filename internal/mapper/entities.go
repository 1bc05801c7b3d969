package mapper

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kjstillabower/farm-records-service/internal/models"
	"github.com/kjstillabower/farm-records-service/internal/records"
)

// timestampLayout matches the millisecond ISO-8601 form the backend stores.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Fallback display names written when the caller leaves the naming field empty.
const (
	NewCropName     = "New Crop"
	UpdatedCropName = "Updated Crop"
	NewFarmName     = "New Farm"
	UpdatedFarmName = "Updated Farm"
	NewTaskName     = "New Task"
	UpdatedTaskName = "Updated Task"
)

func recordID(r gjson.Result) int {
	return int(r.Get(FieldID).Int())
}

func farmRelation(r gjson.Result) int {
	return RelationID(DecodeForeignKey(r.Get(FieldFarmID)))
}

func nameOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}

// setIfPresent writes field only when the caller supplied a value.
func setIfPresent[T any](rec records.Record, field string, v *T) {
	if v != nil {
		rec[field] = *v
	}
}

func valueOr[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

// CropFromRecord maps one crop_c record.
func CropFromRecord(raw []byte) models.Crop {
	r := gjson.ParseBytes(raw)
	return models.Crop{
		ID:              recordID(r),
		Name:            r.Get(FieldName).String(),
		CropType:        r.Get(fieldCropType).String(),
		PlantingDate:    r.Get(fieldPlantingDate).String(),
		FieldLocation:   r.Get(fieldFieldLocation).String(),
		Status:          r.Get(fieldStatus).String(),
		ExpectedHarvest: r.Get(fieldExpectedHarvest).String(),
		Notes:           r.Get(fieldNotes).String(),
		FarmID:          farmRelation(r),
	}
}

func cropFields(in models.CropInput, name string) records.Record {
	rec := records.Record{
		FieldName:   name,
		FieldFarmID: relationValue(in.FarmID),
	}
	setIfPresent(rec, fieldCropType, in.CropType)
	setIfPresent(rec, fieldPlantingDate, in.PlantingDate)
	setIfPresent(rec, fieldFieldLocation, in.FieldLocation)
	setIfPresent(rec, fieldStatus, in.Status)
	setIfPresent(rec, fieldExpectedHarvest, in.ExpectedHarvest)
	setIfPresent(rec, fieldNotes, in.Notes)
	return rec
}

// CropCreatePayload builds the crop_c create record.
func CropCreatePayload(in models.CropInput) records.Record {
	return cropFields(in, nameOr(in.CropType, NewCropName))
}

// CropUpdatePayload builds the crop_c update record for id.
func CropUpdatePayload(id int, in models.CropInput) records.Record {
	rec := cropFields(in, nameOr(in.CropType, UpdatedCropName))
	rec[FieldID] = id
	return rec
}

// ExpenseFromRecord maps one expense_c record.
func ExpenseFromRecord(raw []byte) models.Expense {
	r := gjson.ParseBytes(raw)
	return models.Expense{
		ID:          recordID(r),
		Name:        r.Get(FieldName).String(),
		FarmID:      farmRelation(r),
		Amount:      r.Get(fieldAmount).Float(),
		Category:    r.Get(fieldCategory).String(),
		Date:        r.Get(fieldDate).String(),
		Description: r.Get(fieldDescription).String(),
	}
}

// ExpenseName is the display name written for an expense, e.g. "Seed - 120.5".
// Missing parts read as empty and 0.
func ExpenseName(in models.ExpenseInput) string {
	return fmt.Sprintf("%s - %s", valueOr(in.Category), strconv.FormatFloat(valueOr(in.Amount), 'f', -1, 64))
}

func expenseFields(in models.ExpenseInput) records.Record {
	rec := records.Record{
		FieldName:   ExpenseName(in),
		FieldFarmID: relationValue(in.FarmID),
	}
	setIfPresent(rec, fieldAmount, in.Amount)
	setIfPresent(rec, fieldCategory, in.Category)
	setIfPresent(rec, fieldDate, in.Date)
	setIfPresent(rec, fieldDescription, in.Description)
	return rec
}

// ExpenseCreatePayload builds the expense_c create record.
func ExpenseCreatePayload(in models.ExpenseInput) records.Record {
	return expenseFields(in)
}

// ExpenseUpdatePayload builds the expense_c update record for id.
func ExpenseUpdatePayload(id int, in models.ExpenseInput) records.Record {
	rec := expenseFields(in)
	rec[FieldID] = id
	return rec
}

// FarmFromRecord maps one farm_c record.
func FarmFromRecord(raw []byte) models.Farm {
	r := gjson.ParseBytes(raw)
	return models.Farm{
		ID:        recordID(r),
		Name:      r.Get(fieldFarmName).String(),
		Location:  r.Get(fieldLocation).String(),
		Size:      r.Get(fieldSize).Float(),
		Unit:      r.Get(fieldUnit).String(),
		CreatedAt: r.Get(fieldCreatedAt).String(),
	}
}

func farmFields(in models.FarmInput, name string) records.Record {
	rec := records.Record{FieldName: name}
	setIfPresent(rec, fieldFarmName, in.Name)
	setIfPresent(rec, fieldLocation, in.Location)
	setIfPresent(rec, fieldSize, in.Size)
	setIfPresent(rec, fieldUnit, in.Unit)
	return rec
}

// FarmCreatePayload builds the farm_c create record, stamping created_at_c
// with now.
func FarmCreatePayload(in models.FarmInput, now time.Time) records.Record {
	rec := farmFields(in, nameOr(in.Name, NewFarmName))
	rec[fieldCreatedAt] = now.UTC().Format(timestampLayout)
	return rec
}

// FarmUpdatePayload builds the farm_c update record for id. created_at_c is
// never rewritten.
func FarmUpdatePayload(id int, in models.FarmInput) records.Record {
	rec := farmFields(in, nameOr(in.Name, UpdatedFarmName))
	rec[FieldID] = id
	return rec
}

// TaskFromRecord maps one task_c record.
func TaskFromRecord(raw []byte) models.Task {
	r := gjson.ParseBytes(raw)
	return models.Task{
		ID:          recordID(r),
		Name:        r.Get(FieldName).String(),
		Title:       r.Get(fieldTitle).String(),
		Description: r.Get(fieldDescription).String(),
		DueDate:     r.Get(fieldDueDate).String(),
		Priority:    r.Get(fieldPriority).String(),
		Completed:   r.Get(fieldCompleted).Bool(),
		CompletedAt: r.Get(fieldCompletedAt).String(),
		FarmID:      farmRelation(r),
	}
}

func taskFields(in models.TaskInput, name string) records.Record {
	return records.Record{
		FieldName:        name,
		fieldTitle:       in.Title,
		fieldDescription: in.Description,
		fieldDueDate:     in.DueDate,
		fieldPriority:    in.Priority,
		FieldFarmID:      relationValue(in.FarmID),
	}
}

// TaskCreatePayload builds the task_c create record. New tasks always start
// incomplete regardless of in.Completed.
func TaskCreatePayload(in models.TaskInput) records.Record {
	rec := taskFields(in, nameOr(&in.Title, NewTaskName))
	rec[fieldCompleted] = false
	return rec
}

// TaskUpdatePayload builds the task_c update record for id. completed_c and
// completed_at_c are only written when supplied.
func TaskUpdatePayload(id int, in models.TaskInput) records.Record {
	rec := taskFields(in, nameOr(&in.Title, UpdatedTaskName))
	rec[FieldID] = id
	if in.Completed != nil {
		rec[fieldCompleted] = *in.Completed
	}
	if in.CompletedAt != "" {
		rec[fieldCompletedAt] = in.CompletedAt
	}
	return rec
}
