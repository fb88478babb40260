package models

import "strings"

// CriteriaKey names a user column that can be searched
type CriteriaKey string

const (
	CriteriaID       CriteriaKey = "id"
	CriteriaIDNumber CriteriaKey = "idnumber"
	CriteriaUsername CriteriaKey = "username"
	CriteriaDeleted  CriteriaKey = "deleted"
	CriteriaFullName CriteriaKey = "fullname"
	CriteriaEmail    CriteriaKey = "email"
	CriteriaAuth     CriteriaKey = "auth"
)

var validCriteriaKeys = map[CriteriaKey]bool{
	CriteriaID:       true,
	CriteriaIDNumber: true,
	CriteriaUsername: true,
	CriteriaDeleted:  true,
	CriteriaFullName: true,
	CriteriaEmail:    true,
	CriteriaAuth:     true,
}

// IsValidCriteriaKey checks the key against the searchable columns
func IsValidCriteriaKey(key CriteriaKey) bool {
	return validCriteriaKeys[key]
}

// SearchCriterion is a caller supplied key/value pair
type SearchCriterion struct {
	Key   string `json:"key" validate:"required,max=64"`
	Value string `json:"value" validate:"max=1333"`
}

// Criterion is a validated, trimmed search criterion
type Criterion struct {
	Key   CriteriaKey
	Value string
}

// CriteriaSet is either DiverseCriteria or RepeatedCriteria.
type CriteriaSet interface {
	// Criteria returns the criteria in request order
	Criteria() []Criterion
	isCriteriaSet()
}

// DiverseCriteria holds mutually distinct keys, combined with AND
type DiverseCriteria struct {
	Items []Criterion
}

func (d DiverseCriteria) Criteria() []Criterion { return d.Items }
func (DiverseCriteria) isCriteriaSet()          {}

// RepeatedCriteria holds one key with one or more values, combined with OR
type RepeatedCriteria struct {
	Key    CriteriaKey
	Values []string
}

func (r RepeatedCriteria) Criteria() []Criterion {
	items := make([]Criterion, len(r.Values))
	for i, v := range r.Values {
		items[i] = Criterion{Key: r.Key, Value: v}
	}
	return items
}

func (RepeatedCriteria) isCriteriaSet() {}

// ParseCriteria classifies raw criteria. It returns nil for an empty list.
// A repeated key mixed with any other key is rejected, as is any key that
// is not searchable.
func ParseCriteria(raw []SearchCriterion) (CriteriaSet, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	items := make([]Criterion, len(raw))
	counts := make(map[CriteriaKey]int, len(raw))
	for i, c := range raw {
		key := CriteriaKey(strings.TrimSpace(c.Key))
		items[i] = Criterion{Key: key, Value: c.Value}
		counts[key]++
	}

	if len(counts) > 1 {
		for _, item := range items {
			if counts[item.Key] > 1 {
				return nil, InvalidCriteriaError("invalidkey", string(item.Key))
			}
		}
	}

	for _, item := range items {
		if !IsValidCriteriaKey(item.Key) {
			return nil, InvalidCriteriaError("invalidextparam", string(item.Key))
		}
	}

	if len(counts) > 1 {
		return DiverseCriteria{Items: items}, nil
	}

	values := make([]string, len(items))
	for i, item := range items {
		values[i] = item.Value
	}
	return RepeatedCriteria{Key: items[0].Key, Values: values}, nil
}
