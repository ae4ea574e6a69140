package pagination

// DefaultPageSize is how many library items are requested per page
const DefaultPageSize = 200

type Params struct {
	Page     int
	PageSize int
}

// First is the first page of the given size
func First(pageSize int) Params {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Params{Page: 1, PageSize: pageSize}
}

// Next is the page following p
func (p Params) Next() Params {
	return Params{Page: p.Page + 1, PageSize: p.PageSize}
}

func (p Params) CalculateOffsetLimit() (offset, limit int) {
	if p.PageSize == 0 {
		return 0, 0
	}
	offset = (p.Page - 1) * p.PageSize
	limit = p.PageSize
	return offset, limit
}

func (p Params) BuildMeta(totalItems int) Meta {
	totalPages := 0
	if p.PageSize > 0 {
		totalPages = (totalItems + p.PageSize - 1) / p.PageSize
	}
	return Meta{
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

type Meta struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// HasNext reports whether pages remain after this one
func (m Meta) HasNext() bool {
	return m.Page < m.TotalPages
}
