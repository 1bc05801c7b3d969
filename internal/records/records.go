package records

import (
	"context"
	"encoding/json"
	"errors"
)

// Client is the generic CRUD surface of the record-storage backend. Every
// method addresses a named table (e.g. "crop_c") and returns the backend's
// envelope as-is; a transport or protocol failure is reported as an error,
// a backend-level rejection as Success=false with Message set.
type Client interface {
	FetchRecords(ctx context.Context, table string, params FetchParams) (*FetchResponse, error)
	GetRecordByID(ctx context.Context, table string, id int, params FetchParams) (*GetResponse, error)
	CreateRecord(ctx context.Context, table string, req MutationRequest) (*MutationResponse, error)
	UpdateRecord(ctx context.Context, table string, req MutationRequest) (*MutationResponse, error)
	DeleteRecord(ctx context.Context, table string, req DeleteRequest) (*MutationResponse, error)
}

// ErrUnavailable is returned by a Provider that has no usable client.
var ErrUnavailable = errors.New("record client not available")

// Provider hands out the shared record client, or ErrUnavailable.
type Provider func() (Client, error)

// Static returns a Provider for c. A nil client yields ErrUnavailable.
func Static(c Client) Provider {
	return func() (Client, error) {
		if c == nil {
			return nil, ErrUnavailable
		}
		return c, nil
	}
}

// Guarded returns a Provider that reports ErrUnavailable while closed returns true.
func Guarded(p Provider, closed func() bool) Provider {
	return func() (Client, error) {
		if closed != nil && closed() {
			return nil, ErrUnavailable
		}
		return p()
	}
}

// Field selects one column in a fetch: {"field":{"Name":"crop_type_c"}}.
type Field struct {
	Field struct {
		Name string `json:"Name"`
	} `json:"field"`
}

// Fields builds a selection list from column names.
func Fields(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i].Field.Name = n
	}
	return out
}

// Condition filters fetched records.
type Condition struct {
	FieldName string        `json:"FieldName"`
	Operator  string        `json:"Operator"`
	Values    []interface{} `json:"Values"`
}

// OperatorEqualTo is the only filter operator the services use.
const OperatorEqualTo = "EqualTo"

// EqualTo builds a single-value equality condition.
func EqualTo(field string, value interface{}) Condition {
	return Condition{FieldName: field, Operator: OperatorEqualTo, Values: []interface{}{value}}
}

// Order sorts fetched records.
type Order struct {
	FieldName string `json:"fieldName"`
	SortType  string `json:"sorttype"`
}

// Sort directions accepted by the backend.
const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

// FetchParams is the body of a fetch or get-by-id call.
type FetchParams struct {
	Fields  []Field     `json:"fields"`
	Where   []Condition `json:"where,omitempty"`
	OrderBy []Order     `json:"orderBy,omitempty"`
}

// Record is one row in a write payload, keyed by backend field name.
type Record map[string]interface{}

// MutationRequest is the body of create and update calls.
type MutationRequest struct {
	Records []Record `json:"records"`
}

// DeleteRequest is the body of a delete call.
type DeleteRequest struct {
	RecordIDs []int `json:"RecordIds"`
}

// FetchResponse is returned by FetchRecords. Data holds raw records so mappers
// can read loosely-typed fields.
type FetchResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    []json.RawMessage `json:"data"`
}

// GetResponse is returned by GetRecordByID.
type GetResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// MutationResponse is returned by create, update and delete calls. Results
// carries one entry per submitted record.
type MutationResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Results []RecordResult `json:"results,omitempty"`
}

// RecordResult is the outcome for a single record in a batch.
type RecordResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Errors  []FieldError    `json:"errors,omitempty"`
	Message string          `json:"message,omitempty"`
}

// FieldError is a field-level validation failure reported by the backend.
type FieldError struct {
	FieldLabel string `json:"fieldLabel"`
	Message    string `json:"message"`
}

func (e FieldError) String() string {
	if e.Message == "" {
		return e.FieldLabel
	}
	return e.FieldLabel + ": " + e.Message
}

// Split partitions batch results into successes and failures, preserving order.
func Split(results []RecordResult) (succeeded, failed []RecordResult) {
	for _, r := range results {
		if r.Success {
			succeeded = append(succeeded, r)
		} else {
			failed = append(failed, r)
		}
	}
	return succeeded, failed
}
