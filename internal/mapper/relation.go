package mapper

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ForeignKey is how the backend represents a relation: either a bare id
// (ScalarKey) or an embedded lookup object (EmbeddedKey).
type ForeignKey interface {
	RecordID() int
}

// ScalarKey is a relation returned as a bare integer.
type ScalarKey int

func (k ScalarKey) RecordID() int { return int(k) }

// EmbeddedKey is a relation returned as {"Id": 7, "Name": "Farm A"}.
type EmbeddedKey struct {
	ID   int
	Name string
}

func (k EmbeddedKey) RecordID() int { return k.ID }

// DecodeForeignKey reads a relation field. Absent, null and unparseable
// values decode to nil.
func DecodeForeignKey(field gjson.Result) ForeignKey {
	switch field.Type {
	case gjson.JSON:
		if !field.IsObject() {
			return nil
		}
		return EmbeddedKey{
			ID:   int(field.Get(FieldID).Int()),
			Name: field.Get(FieldName).String(),
		}
	case gjson.Number:
		return ScalarKey(field.Int())
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(field.Str))
		if err != nil {
			return nil
		}
		return ScalarKey(n)
	}
	return nil
}

// RelationID reduces any relation representation to a bare id; 0 when absent.
func RelationID(k ForeignKey) int {
	if k == nil {
		return 0
	}
	return k.RecordID()
}

// relationValue is the write form of a relation: the id, or null when unset.
func relationValue(id int) interface{} {
	if id <= 0 {
		return nil
	}
	return id
}
