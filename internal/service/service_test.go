package service

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/farm-records-service/internal/cache"
	"github.com/kjstillabower/farm-records-service/internal/models"
	"github.com/kjstillabower/farm-records-service/internal/notify"
	"github.com/kjstillabower/farm-records-service/internal/records"
)

// mockRecordClient records every call and answers from canned responses.
type mockRecordClient struct {
	mu sync.Mutex

	fetchResp  *records.FetchResponse
	getResp    *records.GetResponse
	mutateResp *records.MutationResponse
	err        error

	fetches []records.FetchParams
	gets    []int
	writes  []records.MutationRequest
	deletes []records.DeleteRequest
	tables  []string
}

func (m *mockRecordClient) FetchRecords(ctx context.Context, table string, params records.FetchParams) (*records.FetchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = append(m.tables, table)
	m.fetches = append(m.fetches, params)
	if m.err != nil {
		return nil, m.err
	}
	return m.fetchResp, nil
}

func (m *mockRecordClient) GetRecordByID(ctx context.Context, table string, id int, params records.FetchParams) (*records.GetResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = append(m.tables, table)
	m.gets = append(m.gets, id)
	if m.err != nil {
		return nil, m.err
	}
	return m.getResp, nil
}

func (m *mockRecordClient) CreateRecord(ctx context.Context, table string, req records.MutationRequest) (*records.MutationResponse, error) {
	return m.mutate(table, req)
}

func (m *mockRecordClient) UpdateRecord(ctx context.Context, table string, req records.MutationRequest) (*records.MutationResponse, error) {
	return m.mutate(table, req)
}

func (m *mockRecordClient) mutate(table string, req records.MutationRequest) (*records.MutationResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = append(m.tables, table)
	m.writes = append(m.writes, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.mutateResp, nil
}

func (m *mockRecordClient) DeleteRecord(ctx context.Context, table string, req records.DeleteRequest) (*records.MutationResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = append(m.tables, table)
	m.deletes = append(m.deletes, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.mutateResp, nil
}

func (m *mockRecordClient) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetches)
}

func deps(c records.Client, n notify.Notifier) Deps {
	return Deps{Records: records.Static(c), Notifier: n}
}

func raws(docs ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(docs))
	for i, r := range docs {
		out[i] = json.RawMessage(r)
	}
	return out
}

func TestCropService_GetAll(t *testing.T) {
	mc := &mockRecordClient{fetchResp: &records.FetchResponse{Success: true, Data: raws(
		`{"Id":1,"crop_type_c":"Corn","farm_id_c":{"Id":7,"Name":"Farm A"}}`,
		`{"Id":2,"crop_type_c":"Wheat","farm_id_c":7}`,
	)}}
	svc := NewCropService(deps(mc, nil))

	got := svc.GetAll(context.Background())
	if len(got) != 2 || got[0].FarmID != 7 || got[1].FarmID != 7 || got[1].CropType != "Wheat" {
		t.Errorf("GetAll() = %+v", got)
	}
	if mc.tables[0] != "crop_c" {
		t.Errorf("table = %q, want crop_c", mc.tables[0])
	}
	if f := mc.fetches[0].Fields; len(f) == 0 || f[0].Field.Name != "Name" {
		t.Errorf("fields = %+v, want Name first", f)
	}
}

// TestEntityService_ReadFailuresAbsorbed verifies that every read failure
// path yields an empty result and never notifies.
func TestEntityService_ReadFailuresAbsorbed(t *testing.T) {
	tests := []struct {
		name     string
		provider records.Provider
	}{
		{"client unavailable", records.Static(nil)},
		{"transport error", records.Static(&mockRecordClient{err: errors.New("connection refused")})},
		{"backend rejected", records.Static(&mockRecordClient{
			fetchResp: &records.FetchResponse{Success: false, Message: "bad table"},
			getResp:   &records.GetResponse{Success: false, Message: "bad table"},
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := &notify.Collector{}
			svc := NewTaskService(Deps{Records: tt.provider, Notifier: collector})
			ctx := context.Background()

			if got := svc.GetAll(ctx); got == nil || len(got) != 0 {
				t.Errorf("GetAll() = %#v, want empty non-nil slice", got)
			}
			if got := svc.GetByFarmID(ctx, 3); got == nil || len(got) != 0 {
				t.Errorf("GetByFarmID() = %#v, want empty non-nil slice", got)
			}
			if _, ok := svc.GetByID(ctx, 3); ok {
				t.Error("GetByID() ok = true, want false")
			}
			if n := len(collector.Messages()); n != 0 {
				t.Errorf("reads emitted %d notifications, want 0", n)
			}
		})
	}
}

func TestTaskService_GetByFarmID_Filter(t *testing.T) {
	mc := &mockRecordClient{fetchResp: &records.FetchResponse{Success: true}}
	svc := NewTaskService(deps(mc, nil))

	svc.GetByFarmID(context.Background(), 7)

	where := mc.fetches[0].Where
	want := []records.Condition{{FieldName: "farm_id_c", Operator: "EqualTo", Values: []interface{}{7}}}
	if !reflect.DeepEqual(where, want) {
		t.Errorf("where = %+v, want %+v", where, want)
	}
}

func TestFarmService_GetByID(t *testing.T) {
	mc := &mockRecordClient{getResp: &records.GetResponse{Success: true, Data: json.RawMessage(`{"Id":3,"name_c":"Home","size_c":12}`)}}
	svc := NewFarmService(deps(mc, nil))

	got, ok := svc.GetByID(context.Background(), 3)
	if !ok || got.ID != 3 || got.Name != "Home" || got.Size != 12 {
		t.Errorf("GetByID() = %+v, %v", got, ok)
	}
	if mc.gets[0] != 3 {
		t.Errorf("requested id = %d, want 3", mc.gets[0])
	}

	mc.getResp = &records.GetResponse{Success: true, Data: json.RawMessage(`null`)}
	if _, ok := svc.GetByID(context.Background(), 4); ok {
		t.Error("GetByID() ok = true for null data")
	}
}

func TestCropService_Create_Success(t *testing.T) {
	mc := &mockRecordClient{mutateResp: &records.MutationResponse{Success: true, Results: []records.RecordResult{
		{Success: true, Data: json.RawMessage(`{"Id":11,"crop_type_c":"Corn","farm_id_c":{"Id":7}}`)},
	}}}
	collector := &notify.Collector{}
	svc := NewCropService(deps(mc, collector))

	got, err := svc.Create(context.Background(), models.CropInput{CropType: ptr("Corn"), FarmID: 7})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got.ID != 11 || got.FarmID != 7 {
		t.Errorf("Create() = %+v", got)
	}
	if len(mc.writes) != 1 || len(mc.writes[0].Records) != 1 {
		t.Fatalf("writes = %+v, want one batch of one", mc.writes)
	}
	if n := len(collector.Messages()); n != 0 {
		t.Errorf("notifications = %d, want 0", n)
	}
}

// TestCreate_ZeroSuccesses verifies that a create with no successful results
// returns an error after notifying every field and record message.
func TestCreate_ZeroSuccesses(t *testing.T) {
	mc := &mockRecordClient{mutateResp: &records.MutationResponse{Success: true, Results: []records.RecordResult{{
		Success: false,
		Errors:  []records.FieldError{{FieldLabel: "Amount", Message: "must be positive"}},
		Message: "Record rejected",
	}}}}
	collector := &notify.Collector{}
	svc := NewExpenseService(deps(mc, collector))

	_, err := svc.Create(context.Background(), models.ExpenseInput{FarmID: 1, Amount: ptr(-5.0)})
	if !errors.Is(err, ErrCreateFailed) {
		t.Fatalf("Create() error = %v, want ErrCreateFailed", err)
	}
	want := []string{"Amount: must be positive", "Record rejected"}
	if got := collector.Messages(); !reflect.DeepEqual(got, want) {
		t.Errorf("notifications = %v, want %v", got, want)
	}
}

// TestCreate_ZeroSuccessesWithoutDetail verifies that a generic notification
// is emitted when the backend gives no per-record detail.
func TestCreate_ZeroSuccessesWithoutDetail(t *testing.T) {
	mc := &mockRecordClient{mutateResp: &records.MutationResponse{Success: true}}
	collector := &notify.Collector{}
	svc := NewCropService(deps(mc, collector))

	_, err := svc.Create(context.Background(), models.CropInput{FarmID: 1})
	if !errors.Is(err, ErrCreateFailed) {
		t.Fatalf("Create() error = %v, want ErrCreateFailed", err)
	}
	if got := collector.Messages(); !reflect.DeepEqual(got, []string{MsgCreateFailed}) {
		t.Errorf("notifications = %v", got)
	}
}

func TestMutation_BackendRejected(t *testing.T) {
	mc := &mockRecordClient{mutateResp: &records.MutationResponse{Success: false, Message: "Invalid project"}}
	collector := &notify.Collector{}
	svc := NewFarmService(deps(mc, collector))

	_, err := svc.Update(context.Background(), 2, models.FarmInput{Name: ptr("Home")})
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("Update() error = %v, want *BackendError", err)
	}
	if be.Error() != "Invalid project" || be.Op != OpUpdate || be.Table != "farm_c" {
		t.Errorf("BackendError = %+v", be)
	}
	if got := collector.Messages(); !reflect.DeepEqual(got, []string{"Invalid project"}) {
		t.Errorf("notifications = %v", got)
	}
}

func TestMutation_ServiceUnavailable(t *testing.T) {
	collector := &notify.Collector{}
	svc := NewTaskService(Deps{Records: records.Static(nil), Notifier: collector})

	if _, err := svc.Create(context.Background(), models.TaskInput{Title: "x"}); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Create() error = %v, want ErrServiceUnavailable", err)
	}
	if _, err := svc.Delete(context.Background(), 1); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Delete() error = %v, want ErrServiceUnavailable", err)
	}
	if n := len(collector.Messages()); n != 2 {
		t.Errorf("notifications = %d, want 2", n)
	}
}

func TestMutation_TransportError(t *testing.T) {
	transport := errors.New("connection reset")
	mc := &mockRecordClient{err: transport}
	collector := &notify.Collector{}
	svc := NewCropService(deps(mc, collector))

	_, err := svc.Update(context.Background(), 1, models.CropInput{FarmID: 1})
	if !errors.Is(err, transport) {
		t.Errorf("Update() error = %v, want wrapped transport error", err)
	}
	if got := collector.Messages(); !reflect.DeepEqual(got, []string{MsgUpdateFailed}) {
		t.Errorf("notifications = %v", got)
	}
}

// TestTaskService_Update_Partial verifies that a completion-only update does
// not write the optional completion timestamp.
func TestTaskService_Update_Partial(t *testing.T) {
	mc := &mockRecordClient{mutateResp: &records.MutationResponse{Success: true, Results: []records.RecordResult{
		{Success: true, Data: json.RawMessage(`{"Id":5,"completed_c":true}`)},
	}}}
	svc := NewTaskService(deps(mc, nil))

	done := true
	got, err := svc.Update(context.Background(), 5, models.TaskInput{Title: "Water", FarmID: 7, Completed: &done})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !got.Completed {
		t.Error("Update() Completed = false")
	}
	rec := mc.writes[0].Records[0]
	if rec["completed_c"] != true || rec["Id"] != 5 {
		t.Errorf("payload = %+v", rec)
	}
	if _, ok := rec["completed_at_c"]; ok {
		t.Error("payload wrote completed_at_c without a value")
	}
}

func ptr[T any](v T) *T { return &v }

// TestCropService_Update_Partial verifies that a status-only crop update
// leaves the other crop columns out of the write.
func TestCropService_Update_Partial(t *testing.T) {
	mc := &mockRecordClient{mutateResp: &records.MutationResponse{Success: true, Results: []records.RecordResult{
		{Success: true, Data: json.RawMessage(`{"Id":5,"status_c":"harvested","notes_c":"keep me","farm_id_c":1}`)},
	}}}
	svc := NewCropService(deps(mc, nil))

	got, err := svc.Update(context.Background(), 5, models.CropInput{Status: ptr("harvested"), FarmID: 1})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Notes != "keep me" {
		t.Errorf("Notes = %q, want keep me", got.Notes)
	}
	rec := mc.writes[0].Records[0]
	if rec["status_c"] != "harvested" || rec["Id"] != 5 || rec["farm_id_c"] != 1 {
		t.Errorf("payload = %+v", rec)
	}
	for _, k := range []string{"notes_c", "crop_type_c", "planting_date_c", "field_location_c", "expected_harvest_c"} {
		if v, ok := rec[k]; ok {
			t.Errorf("payload wrote %s = %v", k, v)
		}
	}
}

func TestFarmService_Create_StampsClock(t *testing.T) {
	mc := &mockRecordClient{mutateResp: &records.MutationResponse{Success: true, Results: []records.RecordResult{
		{Success: true, Data: json.RawMessage(`{"Id":1}`)},
	}}}
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	svc := NewFarmService(Deps{Records: records.Static(mc), Now: func() time.Time { return now }})

	if _, err := svc.Create(context.Background(), models.FarmInput{Name: ptr("Home")}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got := mc.writes[0].Records[0]["created_at_c"]; got != "2024-05-01T09:30:00.000Z" {
		t.Errorf("created_at_c = %v", got)
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name      string
		resp      *records.MutationResponse
		want      bool
		wantErr   bool
		wantNotes []string
	}{
		{
			name: "record succeeded",
			resp: &records.MutationResponse{Success: true, Results: []records.RecordResult{{Success: true}}},
			want: true,
		},
		{
			name:      "record failed",
			resp:      &records.MutationResponse{Success: true, Results: []records.RecordResult{{Success: false, Message: "Record in use", Errors: []records.FieldError{{FieldLabel: "Id"}}}}},
			want:      false,
			wantNotes: []string{"Record in use"},
		},
		{
			name: "no results",
			resp: &records.MutationResponse{Success: true},
			want: false,
		},
		{
			name:      "backend rejected",
			resp:      &records.MutationResponse{Success: false, Message: "Not allowed"},
			wantErr:   true,
			wantNotes: []string{"Not allowed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := &mockRecordClient{mutateResp: tt.resp}
			collector := &notify.Collector{}
			svc := NewExpenseService(deps(mc, collector))

			got, err := svc.Delete(context.Background(), 9)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Delete() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Delete() = %v, want %v", got, tt.want)
			}
			if !reflect.DeepEqual(mc.deletes[0].RecordIDs, []int{9}) {
				t.Errorf("RecordIds = %v, want [9]", mc.deletes[0].RecordIDs)
			}
			if got := collector.Messages(); len(got) != len(tt.wantNotes) || (len(got) > 0 && !reflect.DeepEqual(got, tt.wantNotes)) {
				t.Errorf("notifications = %v, want %v", got, tt.wantNotes)
			}
		})
	}
}

// stepClock is a manually advanced clock for forecast tests.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func forecastClient() *mockRecordClient {
	return &mockRecordClient{fetchResp: &records.FetchResponse{Success: true, Data: raws(
		`{"Id":1,"date_c":"2024-05-01","condition_c":"sunny","temperature_c":"{\"high\":80,\"low\":65}"}`,
		`{"Id":2,"date_c":"2024-05-02","temperature_c":"clear"}`,
	)}}
}

func newWeather(mc *mockRecordClient, clock *stepClock) *WeatherService {
	fc := cache.NewForecastCache(30*time.Minute, clock.Now)
	return NewWeatherService(deps(mc, nil), fc, false, 0)
}

// TestWeatherService_GetForecast_CachedWithinWindow verifies that no backend
// call happens inside the window and that one happens after it.
func TestWeatherService_GetForecast_CachedWithinWindow(t *testing.T) {
	mc := forecastClient()
	clock := &stepClock{t: time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)}
	svc := newWeather(mc, clock)
	ctx := context.Background()

	first := svc.GetForecast(ctx)
	if len(first) != 2 {
		t.Fatalf("GetForecast() len = %d, want 2", len(first))
	}
	if first[1].Temperature != (models.Temperature{High: 75, Low: 60}) {
		t.Errorf("default temperature = %+v", first[1].Temperature)
	}

	clock.Advance(29 * time.Minute)
	second := svc.GetForecast(ctx)
	if mc.fetchCount() != 1 {
		t.Errorf("backend calls = %d, want 1 within the window", mc.fetchCount())
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached forecast differs: %+v vs %+v", first, second)
	}

	clock.Advance(time.Minute)
	svc.GetForecast(ctx)
	if mc.fetchCount() != 2 {
		t.Errorf("backend calls = %d, want 2 after the window", mc.fetchCount())
	}
}

func TestWeatherService_GetForecast_Ordering(t *testing.T) {
	mc := forecastClient()
	svc := newWeather(mc, &stepClock{})
	svc.GetForecast(context.Background())

	order := mc.fetches[0].OrderBy
	want := []records.Order{{FieldName: "date_c", SortType: "ASC"}}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("orderBy = %+v, want %+v", order, want)
	}
	if mc.tables[0] != "weather_c" {
		t.Errorf("table = %q, want weather_c", mc.tables[0])
	}
}

// TestWeatherService_GetForecast_DistinctCopies verifies that callers can
// mutate what they receive without affecting later callers.
func TestWeatherService_GetForecast_DistinctCopies(t *testing.T) {
	svc := newWeather(forecastClient(), &stepClock{})
	ctx := context.Background()

	a := svc.GetForecast(ctx)
	a[0].Condition = "mutated"
	b := svc.GetForecast(ctx)

	if &a[0] == &b[0] {
		t.Error("GetForecast() returned the same backing array twice")
	}
	if b[0].Condition != "sunny" {
		t.Errorf("cache was mutated through a returned slice: %+v", b[0])
	}
}

// TestWeatherService_FailureKeepsCache verifies that a failed refresh returns
// empty and leaves the previous snapshot in place.
func TestWeatherService_FailureKeepsCache(t *testing.T) {
	mc := forecastClient()
	clock := &stepClock{}
	fc := cache.NewForecastCache(30*time.Minute, clock.Now)
	svc := NewWeatherService(deps(mc, nil), fc, false, 0)
	ctx := context.Background()

	svc.GetForecast(ctx)
	captured, _ := fc.CapturedAt()

	clock.Advance(time.Hour)
	mc.mu.Lock()
	mc.fetchResp = &records.FetchResponse{Success: false, Message: "down"}
	mc.mu.Unlock()

	if got := svc.GetForecast(ctx); got == nil || len(got) != 0 {
		t.Errorf("GetForecast() = %#v, want empty non-nil slice", got)
	}
	if at, ok := fc.CapturedAt(); !ok || !at.Equal(captured) {
		t.Errorf("slot changed on failure: %v %v", at, ok)
	}
	if _, err := svc.LoadForecast(ctx); err == nil {
		t.Error("LoadForecast() error = nil on backend failure")
	}
}

func TestWeatherService_GetCurrentWeather(t *testing.T) {
	svc := newWeather(forecastClient(), &stepClock{})
	got, ok := svc.GetCurrentWeather(context.Background())
	if !ok || got.ID != 1 || got.Temperature.High != 80 {
		t.Errorf("GetCurrentWeather() = %+v, %v", got, ok)
	}

	empty := newWeather(&mockRecordClient{fetchResp: &records.FetchResponse{Success: true}}, &stepClock{})
	if _, ok := empty.GetCurrentWeather(context.Background()); ok {
		t.Error("GetCurrentWeather() ok = true on empty forecast")
	}

	unavailable := NewWeatherService(Deps{Records: records.Static(nil)}, nil, false, 0)
	if _, ok := unavailable.GetCurrentWeather(context.Background()); ok {
		t.Error("GetCurrentWeather() ok = true without a client")
	}
}

// TestWeatherService_Coalescing verifies that concurrent refreshes share one
// backend call when coalescing is enabled.
func TestWeatherService_Coalescing(t *testing.T) {
	release := make(chan struct{})
	mc := &slowForecastClient{mockRecordClient: forecastClient(), release: release}
	svc := NewWeatherService(Deps{Records: records.Static(mc)}, nil, true, 5*time.Second)

	var wg sync.WaitGroup
	results := make([][]models.ForecastEntry, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.GetForecast(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := mc.fetchCount(); n != 1 {
		t.Errorf("backend calls = %d, want 1", n)
	}
	for i, r := range results {
		if len(r) != 2 {
			t.Errorf("result %d len = %d, want 2", i, len(r))
		}
	}
	if &results[0][0] == &results[1][0] {
		t.Error("coalesced callers share a backing array")
	}
}

type slowForecastClient struct {
	*mockRecordClient
	release chan struct{}
}

func (s *slowForecastClient) FetchRecords(ctx context.Context, table string, params records.FetchParams) (*records.FetchResponse, error) {
	<-s.release
	return s.mockRecordClient.FetchRecords(ctx, table, params)
}
