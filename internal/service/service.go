package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/farm-records-service/internal/notify"
	"github.com/kjstillabower/farm-records-service/internal/observability"
	"github.com/kjstillabower/farm-records-service/internal/records"
)

// Mutation operations, used in errors, logs and metric labels.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

var (
	// ErrServiceUnavailable is returned by mutations when no record client is available.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrCreateFailed is returned when a create reached the backend but no record was created.
	ErrCreateFailed = errors.New("create operation failed")
	// ErrUpdateFailed is returned when an update reached the backend but no record was updated.
	ErrUpdateFailed = errors.New("update operation failed")
	// ErrDeleteFailed wraps transport failures of a delete.
	ErrDeleteFailed = errors.New("delete operation failed")
)

// User-facing notification texts.
const (
	MsgServiceUnavailable = "Service unavailable"
	MsgCreateFailed       = "Create operation failed"
	MsgUpdateFailed       = "Update operation failed"
	MsgDeleteFailed       = "Delete operation failed"
)

// BackendError is a mutation the backend rejected with success=false.
// Error returns the backend's message unchanged.
type BackendError struct {
	Op      string
	Table   string
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s rejected by backend", e.Op, e.Table)
	}
	return e.Message
}

// Deps are the collaborators shared by every entity service.
type Deps struct {
	Records  records.Provider
	Notifier notify.Notifier
	Logger   *zap.Logger
	// Now stamps created_at_c on new farms; defaults to time.Now.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Records == nil {
		d.Records = records.Static(nil)
	}
	if d.Notifier == nil {
		d.Notifier = notify.Discard
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// core is one backend table with its selection list. It owns the two-tier
// failure contract: reads log and return nothing, mutations log, notify and
// return an error.
type core struct {
	table  string
	fields []string
	deps   Deps
}

func newCore(table string, fields []string, deps Deps) core {
	return core{table: table, fields: fields, deps: deps.withDefaults()}
}

func (c *core) logger(ctx context.Context) *zap.Logger {
	return observability.LoggerFromContext(ctx, c.deps.Logger).With(zap.String("table", c.table))
}

func (c *core) params(where ...records.Condition) records.FetchParams {
	return records.FetchParams{Fields: records.Fields(c.fields...), Where: where}
}

// readFailed logs and counts an absorbed read failure.
func (c *core) readFailed(ctx context.Context, msg string, fields ...zap.Field) {
	observability.ReadFailuresTotal.WithLabelValues(c.table).Inc()
	c.logger(ctx).Error(msg, fields...)
}

// fetch runs a list query. ok is false when the failure was absorbed.
func (c *core) fetch(ctx context.Context, params records.FetchParams) ([]json.RawMessage, bool) {
	client, err := c.deps.Records()
	if err != nil {
		c.readFailed(ctx, "record client not available", zap.Error(err))
		return nil, false
	}
	resp, err := client.FetchRecords(ctx, c.table, params)
	if err != nil {
		c.readFailed(ctx, "fetch records failed", zap.Error(err))
		return nil, false
	}
	if !resp.Success {
		c.readFailed(ctx, "fetch records rejected", zap.String("message", resp.Message))
		return nil, false
	}
	return resp.Data, true
}

// get runs a single-record query. ok is false when absent or absorbed.
func (c *core) get(ctx context.Context, id int) (json.RawMessage, bool) {
	client, err := c.deps.Records()
	if err != nil {
		c.readFailed(ctx, "record client not available", zap.Error(err), zap.Int("id", id))
		return nil, false
	}
	resp, err := client.GetRecordByID(ctx, c.table, id, c.params())
	if err != nil {
		c.readFailed(ctx, "get record failed", zap.Error(err), zap.Int("id", id))
		return nil, false
	}
	if !resp.Success {
		c.readFailed(ctx, "get record rejected", zap.String("message", resp.Message), zap.Int("id", id))
		return nil, false
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, false
	}
	return resp.Data, true
}

// fail logs, counts and notifies a mutation failure, then returns err.
func (c *core) fail(ctx context.Context, op string, err error, notification string) error {
	observability.MutationFailuresTotal.WithLabelValues(c.table, op).Inc()
	c.logger(ctx).Error("mutation failed", zap.String("op", op), zap.Error(err))
	if notification != "" {
		c.deps.Notifier.NotifyError(ctx, notification)
	}
	return err
}

// reportFailed logs failed batch results and notifies one message per field
// error and per record message. Returns the number of notifications sent.
func (c *core) reportFailed(ctx context.Context, op string, failed []records.RecordResult, withFieldErrors bool) int {
	if len(failed) == 0 {
		return 0
	}
	c.logger(ctx).Error("batch records failed",
		zap.String("op", op),
		zap.Int("failed", len(failed)),
		zap.Any("results", failed),
	)
	sent := 0
	for _, r := range failed {
		if withFieldErrors {
			for _, fe := range r.Errors {
				c.deps.Notifier.NotifyError(ctx, fe.String())
				sent++
			}
		}
		if r.Message != "" {
			c.deps.Notifier.NotifyError(ctx, r.Message)
			sent++
		}
	}
	return sent
}

// call acquires the client or fails the mutation as unavailable.
func (c *core) call(ctx context.Context, op string) (records.Client, error) {
	client, err := c.deps.Records()
	if err != nil {
		return nil, c.fail(ctx, op, fmt.Errorf("%s %s: %w", op, c.table, ErrServiceUnavailable), MsgServiceUnavailable)
	}
	return client, nil
}

// write runs a create or update of a single record and returns the data of
// the first successful result.
func (c *core) write(ctx context.Context, op string, rec records.Record) (json.RawMessage, error) {
	failedErr, failedMsg := ErrCreateFailed, MsgCreateFailed
	if op == OpUpdate {
		failedErr, failedMsg = ErrUpdateFailed, MsgUpdateFailed
	}

	client, err := c.call(ctx, op)
	if err != nil {
		return nil, err
	}
	req := records.MutationRequest{Records: []records.Record{rec}}
	var resp *records.MutationResponse
	if op == OpUpdate {
		resp, err = client.UpdateRecord(ctx, c.table, req)
	} else {
		resp, err = client.CreateRecord(ctx, c.table, req)
	}
	if err != nil {
		return nil, c.fail(ctx, op, fmt.Errorf("%s %s: %w", op, c.table, err), failedMsg)
	}
	if !resp.Success {
		be := &BackendError{Op: op, Table: c.table, Message: resp.Message}
		return nil, c.fail(ctx, op, be, nonEmpty(resp.Message, failedMsg))
	}

	succeeded, failed := records.Split(resp.Results)
	sent := c.reportFailed(ctx, op, failed, true)
	if len(succeeded) > 0 {
		return succeeded[0].Data, nil
	}
	notification := failedMsg
	if sent > 0 {
		notification = ""
	}
	return nil, c.fail(ctx, op, fmt.Errorf("%s %s: %w", op, c.table, failedErr), notification)
}

// remove deletes one record. It reports true iff at least one targeted record
// succeeded; a backend-accepted call whose record failed yields false, nil.
func (c *core) remove(ctx context.Context, id int) (bool, error) {
	client, err := c.call(ctx, OpDelete)
	if err != nil {
		return false, err
	}
	resp, err := client.DeleteRecord(ctx, c.table, records.DeleteRequest{RecordIDs: []int{id}})
	if err != nil {
		return false, c.fail(ctx, OpDelete, fmt.Errorf("%s %s: %w: %w", OpDelete, c.table, ErrDeleteFailed, err), MsgDeleteFailed)
	}
	if !resp.Success {
		be := &BackendError{Op: OpDelete, Table: c.table, Message: resp.Message}
		return false, c.fail(ctx, OpDelete, be, nonEmpty(resp.Message, MsgDeleteFailed))
	}
	if resp.Results == nil {
		return false, nil
	}
	succeeded, failed := records.Split(resp.Results)
	c.reportFailed(ctx, OpDelete, failed, false)
	return len(succeeded) > 0, nil
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
