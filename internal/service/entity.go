package service

import (
	"context"
	"encoding/json"

	"github.com/kjstillabower/farm-records-service/internal/mapper"
	"github.com/kjstillabower/farm-records-service/internal/records"
)

// entity is the CRUD surface shared by the crop, expense, farm and task
// services. T is the domain model and I its write input.
type entity[T any, I any] struct {
	core
	fromRecord    func([]byte) T
	createPayload func(I) records.Record
	updatePayload func(int, I) records.Record
}

func (e *entity[T, I]) mapAll(raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		out = append(out, e.fromRecord(r))
	}
	return out
}

// GetAll returns every record in backend order; empty on any failure.
func (e *entity[T, I]) GetAll(ctx context.Context) []T {
	raw, ok := e.fetch(ctx, e.params())
	if !ok {
		return []T{}
	}
	return e.mapAll(raw)
}

// GetByID returns the record with id, or false when absent or on failure.
func (e *entity[T, I]) GetByID(ctx context.Context, id int) (T, bool) {
	var zero T
	raw, ok := e.get(ctx, id)
	if !ok {
		return zero, false
	}
	return e.fromRecord(raw), true
}

// byFarm returns the records whose farm relation equals farmID.
func (e *entity[T, I]) byFarm(ctx context.Context, farmID int) []T {
	raw, ok := e.fetch(ctx, e.params(records.EqualTo(mapper.FieldFarmID, farmID)))
	if !ok {
		return []T{}
	}
	return e.mapAll(raw)
}

// Create writes one record and returns it as stored by the backend.
func (e *entity[T, I]) Create(ctx context.Context, in I) (T, error) {
	var zero T
	data, err := e.write(ctx, OpCreate, e.createPayload(in))
	if err != nil {
		return zero, err
	}
	return e.fromRecord(data), nil
}

// Update rewrites record id and returns it as stored by the backend.
func (e *entity[T, I]) Update(ctx context.Context, id int, in I) (T, error) {
	var zero T
	data, err := e.write(ctx, OpUpdate, e.updatePayload(id, in))
	if err != nil {
		return zero, err
	}
	return e.fromRecord(data), nil
}

// Delete removes record id. See core.remove for the result contract.
func (e *entity[T, I]) Delete(ctx context.Context, id int) (bool, error) {
	return e.remove(ctx, id)
}
