package service

import (
	"context"

	"github.com/kjstillabower/farm-records-service/internal/mapper"
	"github.com/kjstillabower/farm-records-service/internal/models"
	"github.com/kjstillabower/farm-records-service/internal/records"
)

// CropService manages crop_c records.
type CropService struct {
	*entity[models.Crop, models.CropInput]
}

func NewCropService(deps Deps) *CropService {
	return &CropService{&entity[models.Crop, models.CropInput]{
		core:          newCore(mapper.TableCrop, mapper.CropFields, deps),
		fromRecord:    mapper.CropFromRecord,
		createPayload: mapper.CropCreatePayload,
		updatePayload: mapper.CropUpdatePayload,
	}}
}

// GetByFarmID returns the crops planted on farmID.
func (s *CropService) GetByFarmID(ctx context.Context, farmID int) []models.Crop {
	return s.byFarm(ctx, farmID)
}

// ExpenseService manages expense_c records.
type ExpenseService struct {
	*entity[models.Expense, models.ExpenseInput]
}

func NewExpenseService(deps Deps) *ExpenseService {
	return &ExpenseService{&entity[models.Expense, models.ExpenseInput]{
		core:          newCore(mapper.TableExpense, mapper.ExpenseFields, deps),
		fromRecord:    mapper.ExpenseFromRecord,
		createPayload: mapper.ExpenseCreatePayload,
		updatePayload: mapper.ExpenseUpdatePayload,
	}}
}

// GetByFarmID returns the expenses booked against farmID.
func (s *ExpenseService) GetByFarmID(ctx context.Context, farmID int) []models.Expense {
	return s.byFarm(ctx, farmID)
}

// FarmService manages farm_c records.
type FarmService struct {
	*entity[models.Farm, models.FarmInput]
}

func NewFarmService(deps Deps) *FarmService {
	c := newCore(mapper.TableFarm, mapper.FarmFields, deps)
	now := c.deps.Now
	return &FarmService{&entity[models.Farm, models.FarmInput]{
		core:       c,
		fromRecord: mapper.FarmFromRecord,
		createPayload: func(in models.FarmInput) records.Record {
			return mapper.FarmCreatePayload(in, now())
		},
		updatePayload: mapper.FarmUpdatePayload,
	}}
}

// TaskService manages task_c records.
type TaskService struct {
	*entity[models.Task, models.TaskInput]
}

func NewTaskService(deps Deps) *TaskService {
	return &TaskService{&entity[models.Task, models.TaskInput]{
		core:          newCore(mapper.TableTask, mapper.TaskFields, deps),
		fromRecord:    mapper.TaskFromRecord,
		createPayload: mapper.TaskCreatePayload,
		updatePayload: mapper.TaskUpdatePayload,
	}}
}

// GetByFarmID returns the tasks tied to farmID.
func (s *TaskService) GetByFarmID(ctx context.Context, farmID int) []models.Task {
	return s.byFarm(ctx, farmID)
}
