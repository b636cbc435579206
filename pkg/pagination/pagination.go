package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultSize = 10
	MaxSize     = 100
)

// Page returns items[index*size : min(index*size+size, len(items))]. An index
// past the end yields an empty slice; callers clamp indices themselves.
func Page[T any](items []T, size, index int) []T {
	if size <= 0 || index < 0 || len(items) == 0 {
		return items[:0]
	}
	// Compare before multiplying so a huge index cannot overflow.
	if index > (len(items)-1)/size {
		return items[:0]
	}
	start := index * size
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// PageCount returns the number of pages needed for total items. An empty list
// still has one (empty) page.
func PageCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Pager tracks the current page of a list and clamps navigation to the valid
// range.
type Pager struct {
	Size  int
	Index int
	Total int
}

// NewPager starts at the first page.
func NewPager(size, total int) *Pager {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pager{Size: size, Total: total}
}

// Pages returns the number of pages.
func (p *Pager) Pages() int {
	return PageCount(p.Total, p.Size)
}

// SetTotal updates the item count, keeping the index in range.
func (p *Pager) SetTotal(total int) {
	p.Total = total
	p.clamp()
}

func (p *Pager) First() { p.Index = 0 }

func (p *Pager) Last() { p.Index = p.Pages() - 1 }

func (p *Pager) Next() {
	p.Index++
	p.clamp()
}

func (p *Pager) Previous() {
	p.Index--
	p.clamp()
}

func (p *Pager) HasNext() bool { return p.Index < p.Pages()-1 }

func (p *Pager) HasPrevious() bool { return p.Index > 0 }

func (p *Pager) clamp() {
	if last := p.Pages() - 1; p.Index > last {
		p.Index = last
	}
	if p.Index < 0 {
		p.Index = 0
	}
}

// CurrentPage slices items to the pager's current page.
func CurrentPage[T any](p *Pager, items []T) []T {
	return Page(items, p.Size, p.Index)
}

// Params holds pagination parameters extracted from a request.
type Params struct {
	Size  int
	Index int
}

// FromContext reads the zero-based "page" and the "size" query parameters.
func FromContext(c echo.Context) Params {
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	index, _ := strconv.Atoi(c.QueryParam("page"))
	if index < 0 {
		index = 0
	}
	return Params{Size: size, Index: index}
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	Size    int         `json:"size"`
	Pages   int         `json:"pages"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	pages := PageCount(total, p.Size)
	return &Response{
		Data:    data,
		Total:   total,
		Page:    p.Index,
		Size:    p.Size,
		Pages:   pages,
		HasMore: p.Index < pages-1,
	}
}
