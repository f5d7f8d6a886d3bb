package web

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// pageParams are the query parameters of a listing carried into its page links.
var pageParams = []string{"search"}

// Pagination is a window of pageLen records over a listing, such as the recorded
// sync attempts shown on the history page.
type Pagination struct {
	query url.Values

	PageNo   int
	Pages    int
	Total    int // records in the listing
	First    int // 1-based number of the first record on the page, 0 if none
	Last     int
	Next     int // 0 means no next page
	Previous int // 0 means no previous page
}

// ErrInvalidPageLen reports a page length below 1.
var ErrInvalidPageLen = errors.New("pageLen cannot be below 1")

// ErrInvalidPageNo reports a page beyond the last page.
type ErrInvalidPageNo struct {
	PageNo     int
	TotalPages int
}

func (e ErrInvalidPageNo) Error() string {
	return fmt.Sprintf("invalid page number: %d (total pages: %d)", e.PageNo, e.TotalPages)
}

// NewPagination returns page currentPage of a listing of totalRecords. An empty
// listing has a single page. Only the pageParams of query are kept for the page
// links; empty ones are dropped.
func NewPagination(pageLen, totalRecords, currentPage int, query url.Values) (*Pagination, error) {

	if pageLen < 1 {
		return nil, ErrInvalidPageLen
	}
	if totalRecords < 0 {
		totalRecords = 0
	}

	pages := max(1, (totalRecords+pageLen-1)/pageLen)
	if currentPage < 1 {
		currentPage = 1
	}
	if currentPage > pages {
		return nil, ErrInvalidPageNo{PageNo: currentPage, TotalPages: pages}
	}

	pg := &Pagination{
		query:  url.Values{},
		PageNo: currentPage,
		Pages:  pages,
		Total:  totalRecords,
	}
	for _, k := range pageParams {
		if v := query.Get(k); v != "" {
			pg.query.Set(k, v)
		}
	}
	if totalRecords > 0 {
		pg.First = (currentPage-1)*pageLen + 1
		pg.Last = min(currentPage*pageLen, totalRecords)
	}
	if currentPage > 1 {
		pg.Previous = currentPage - 1
	}
	if currentPage < pages {
		pg.Next = currentPage + 1
	}
	return pg, nil
}

// Summary describes the records on the page, eg "16-30 of 42".
func (p *Pagination) Summary() string {
	if p.Total == 0 {
		return "0 of 0"
	}
	return fmt.Sprintf("%d-%d of %d", p.First, p.Last, p.Total)
}

func (p *Pagination) pageURL(page int) string {
	q := url.Values{}
	for k, v := range p.query {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(page))
	return "?" + q.Encode()
}

// NextURL returns the query string of the next page, or "" on the last page.
func (p *Pagination) NextURL() string {
	if p.Next == 0 {
		return ""
	}
	return p.pageURL(p.Next)
}

// PreviousURL returns the query string of the previous page, or "" on the first.
func (p *Pagination) PreviousURL() string {
	if p.Previous == 0 {
		return ""
	}
	return p.pageURL(p.Previous)
}
