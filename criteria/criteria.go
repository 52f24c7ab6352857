package criteria

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const (
	// DefaultPerPage is the page size used when none is requested
	DefaultPerPage = 25
	// MaxPerPage caps a single page; replay batches are bounded by it too
	MaxPerPage = 1000
)

// ErrInvalid marks criteria that reference unknown fields or operators
var ErrInvalid = errors.New("invalid criteria")

// Operator is a filter comparison
type Operator string

const (
	OpEqual        Operator = "EQ"
	OpNotEqual     Operator = "NEQ"
	OpGreater      Operator = "GT"
	OpGreaterEqual Operator = "GTE"
	OpLess         Operator = "LT"
	OpLessEqual    Operator = "LTE"
	OpLike         Operator = "LIKE"
	OpIn           Operator = "IN"
)

var operatorSQL = map[Operator]string{
	OpEqual:        "=",
	OpNotEqual:     "<>",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpLike:         "LIKE",
	OpIn:           "IN",
}

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

type Filter struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

type Sort struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

// Criteria is the query object accepted by every find-by-criteria operation
type Criteria struct {
	Filters    []Filter   `json:"filters"`
	Sorts      []Sort     `json:"sorts"`
	Pagination Pagination `json:"pagination"`
}

// Page is one slice of a criteria query result
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

// Eq is shorthand for an equality filter
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Operator: OpEqual, Value: value}
}

// Normalize fills in defaults and clamps pagination
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset is the number of rows skipped before this page
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

// NewPage builds a page and its page count
func NewPage[T any](items []T, total int64, p Pagination) Page[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	totalPages := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: totalPages,
	}
}

// MapPage converts the items of a page keeping its counters
func MapPage[T, U any](page Page[T], fn func(T) U) Page[U] {
	items := make([]U, len(page.Items))
	for i, item := range page.Items {
		items[i] = fn(item)
	}
	return Page[U]{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: page.TotalPages,
	}
}

// Columns maps the field names callers may filter or sort on to table columns
type Columns map[string]string

// Where applies the filters of c to db. Fields outside columns are rejected.
func Where(db *gorm.DB, c Criteria, columns Columns) (*gorm.DB, error) {
	for _, f := range c.Filters {
		column, ok := columns[f.Field]
		if !ok {
			return nil, fmt.Errorf("%w: cannot filter on field %q", ErrInvalid, f.Field)
		}
		op := f.Operator
		if op == "" {
			op = OpEqual
		}
		sqlOp, ok := operatorSQL[Operator(strings.ToUpper(string(op)))]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported operator %q on field %q", ErrInvalid, f.Operator, f.Field)
		}
		if sqlOp == "IN" {
			db = db.Where(fmt.Sprintf("%s IN ?", column), f.Value)
			continue
		}
		db = db.Where(fmt.Sprintf("%s %s ?", column, sqlOp), f.Value)
	}
	return db, nil
}

// OrderAndPage applies sorts and pagination. The tiebreak column keeps page
// boundaries stable when sort keys repeat.
func OrderAndPage(db *gorm.DB, c Criteria, columns Columns, tiebreak string) (*gorm.DB, error) {
	for _, s := range c.Sorts {
		column, ok := columns[s.Field]
		if !ok {
			return nil, fmt.Errorf("%w: cannot sort on field %q", ErrInvalid, s.Field)
		}
		direction := Asc
		if strings.EqualFold(string(s.Direction), string(Desc)) {
			direction = Desc
		}
		db = db.Order(fmt.Sprintf("%s %s", column, direction))
	}
	if tiebreak != "" {
		db = db.Order(tiebreak + " ASC")
	}

	p := c.Pagination.Normalize()
	return db.Offset(p.Offset()).Limit(p.PerPage), nil
}

// Find runs a counted, paged query over rows of type R
func Find[R any](db *gorm.DB, c Criteria, columns Columns, tiebreak string) ([]R, int64, error) {
	var rows []R
	var model R

	query, err := Where(db.Model(&model), c, columns)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	paged, err := OrderAndPage(query.Session(&gorm.Session{}), c, columns, tiebreak)
	if err != nil {
		return nil, 0, err
	}
	if err := paged.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
