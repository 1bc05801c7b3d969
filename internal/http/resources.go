package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kjstillabower/farm-records-service/internal/models"
	"github.com/kjstillabower/farm-records-service/internal/service"
	"github.com/kjstillabower/farm-records-service/internal/validation"
)

// store is the CRUD surface every entity service exposes.
type store[T any, I any] interface {
	GetAll(ctx context.Context) []T
	GetByID(ctx context.Context, id int) (T, bool)
	Create(ctx context.Context, in I) (T, error)
	Update(ctx context.Context, id int, in I) (T, error)
	Delete(ctx context.Context, id int) (bool, error)
}

// resource serves one entity service. byFarm is nil for entities that are
// not scoped to a farm.
type resource[T any, I any] struct {
	kind   string
	store  store[T, I]
	byFarm func(ctx context.Context, farmID int) []T
}

// mount registers the CRUD routes of res under /{path}, and
// /farms/{farmId}/{path} when the entity belongs to a farm.
func mount[T any, I any](r *mux.Router, path string, res *resource[T, I]) {
	r.HandleFunc("/"+path, res.list).Methods(http.MethodGet)
	r.HandleFunc("/"+path, res.create).Methods(http.MethodPost)
	r.HandleFunc("/"+path+"/{id}", res.get).Methods(http.MethodGet)
	r.HandleFunc("/"+path+"/{id}", res.update).Methods(http.MethodPut)
	r.HandleFunc("/"+path+"/{id}", res.remove).Methods(http.MethodDelete)
	if res.byFarm != nil {
		r.HandleFunc("/farms/{farmId}/"+path, res.listByFarm).Methods(http.MethodGet)
	}
}

// RegisterRoutes mounts the entity and weather routes on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	if s := h.services.Crops; s != nil {
		mount(r, "crops", &resource[models.Crop, models.CropInput]{kind: "crop", store: s, byFarm: s.GetByFarmID})
	}
	if s := h.services.Expenses; s != nil {
		mount(r, "expenses", &resource[models.Expense, models.ExpenseInput]{kind: "expense", store: s, byFarm: s.GetByFarmID})
	}
	if s := h.services.Tasks; s != nil {
		mount(r, "tasks", &resource[models.Task, models.TaskInput]{kind: "task", store: s, byFarm: s.GetByFarmID})
	}
	if s := h.services.Farms; s != nil {
		mount(r, "farms", &resource[models.Farm, models.FarmInput]{kind: "farm", store: s})
	}
	if h.services.Weather != nil {
		r.HandleFunc("/weather/forecast", h.GetForecast).Methods(http.MethodGet)
		r.HandleFunc("/weather/current", h.GetCurrentWeather).Methods(http.MethodGet)
	}
}

func (res *resource[T, I]) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, res.store.GetAll(r.Context()))
}

func (res *resource[T, I]) listByFarm(w http.ResponseWriter, r *http.Request) {
	farmID, ok := pathID(w, r, "farmId")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res.byFarm(r.Context(), farmID))
}

func (res *resource[T, I]) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	item, found := res.store.GetByID(r.Context(), id)
	if !found {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", res.kind+" not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (res *resource[T, I]) create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeBody[I](w, r)
	if !ok {
		return
	}
	item, err := res.store.Create(r.Context(), in)
	if err != nil {
		writeMutationError(w, r, service.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (res *resource[T, I]) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, ok := decodeBody[I](w, r)
	if !ok {
		return
	}
	item, err := res.store.Update(r.Context(), id, in)
	if err != nil {
		writeMutationError(w, r, service.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// remove reports whether the record was deleted along with any per-record
// failure messages the backend returned.
func (res *resource[T, I]) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	deleted, err := res.store.Delete(r.Context(), id)
	if err != nil {
		writeMutationError(w, r, service.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted":       deleted,
		"notifications": notifications(r.Context()),
	})
}

// pathID parses a path variable as a record id, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	id, err := validation.ParseRecordID(mux.Vars(r)[key])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ID", key+": "+err.Error())
		return 0, false
	}
	return id, true
}

// decodeBody decodes and validates a JSON request body, writing 400 on failure.
func decodeBody[I any](w http.ResponseWriter, r *http.Request) (I, bool) {
	var in I
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		return in, false
	}
	if err := validation.ValidateBody(in); err != nil {
		var be *validation.BodyError
		if errors.As(err, &be) {
			writeError(w, r, http.StatusBadRequest, "INVALID_BODY", be.Error())
		} else {
			writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		return in, false
	}
	return in, true
}
