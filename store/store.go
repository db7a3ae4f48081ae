package store

import (
	"time"
)

// MaxLimit caps the page size of list queries
const MaxLimit = 100

var (
	ContextTimeout = time.Duration(20) * time.Second
)

type Pagination struct {
	Offset int
	Limit  int
}

func DefaultPagination() Pagination {
	return Pagination{
		Offset: 0,
		Limit:  10,
	}
}

func (p Pagination) WithLimit(limit int) Pagination {
	p.Limit = limit
	return p
}

func (p Pagination) WithOffset(offset int) Pagination {
	p.Offset = offset
	return p
}
