package models

// Crop is a planting on a farm field.
type Crop struct {
	ID              int    `json:"Id"`
	Name            string `json:"name,omitempty"`
	CropType        string `json:"cropType"`
	PlantingDate    string `json:"plantingDate"`
	FieldLocation   string `json:"fieldLocation"`
	Status          string `json:"status"`
	ExpectedHarvest string `json:"expectedHarvest"`
	Notes           string `json:"notes"`
	FarmID          int    `json:"farmId"`
}

// CropInput carries caller-supplied crop fields for create and update. Nil
// fields are left out of the write; FarmID is always written.
type CropInput struct {
	CropType        *string `json:"cropType,omitempty"`
	PlantingDate    *string `json:"plantingDate,omitempty"`
	FieldLocation   *string `json:"fieldLocation,omitempty"`
	Status          *string `json:"status,omitempty"`
	ExpectedHarvest *string `json:"expectedHarvest,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	FarmID          int     `json:"farmId" validate:"required,gt=0"`
}

// Expense is a cost booked against a farm.
type Expense struct {
	ID          int     `json:"Id"`
	Name        string  `json:"name,omitempty"`
	FarmID      int     `json:"farmId"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
}

// ExpenseInput carries caller-supplied expense fields for create and update.
// Nil fields are left out of the write.
type ExpenseInput struct {
	FarmID      int      `json:"farmId" validate:"required,gt=0"`
	Amount      *float64 `json:"amount,omitempty" validate:"omitempty,gte=0"`
	Category    *string  `json:"category,omitempty"`
	Date        *string  `json:"date,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// Farm is a managed property.
type Farm struct {
	ID        int     `json:"Id"`
	Name      string  `json:"name"`
	Location  string  `json:"location"`
	Size      float64 `json:"size"`
	Unit      string  `json:"unit"`
	CreatedAt string  `json:"createdAt"`
}

// FarmInput carries caller-supplied farm fields for create and update. Nil
// fields are left out of the write.
type FarmInput struct {
	Name     *string  `json:"name,omitempty"`
	Location *string  `json:"location,omitempty"`
	Size     *float64 `json:"size,omitempty" validate:"omitempty,gte=0"`
	Unit     *string  `json:"unit,omitempty"`
}

// Task is a to-do item, optionally tied to a farm.
type Task struct {
	ID          int    `json:"Id"`
	Name        string `json:"name,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Priority    string `json:"priority"`
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completedAt,omitempty"`
	FarmID      int    `json:"farmId"`
}

// TaskInput carries caller-supplied task fields. Title, Description, DueDate,
// Priority and FarmID are always written on update; Completed and CompletedAt
// only when set.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Priority    string `json:"priority"`
	FarmID      int    `json:"farmId"`
	Completed   *bool  `json:"completed,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
}
