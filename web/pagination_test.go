package web

import (
	"errors"
	"fmt"
	"net/url"
	"testing"
)

func TestPagination(t *testing.T) {

	tests := []struct {
		name        string
		inputURL    string
		pageLen     int
		syncs       int
		page        int
		summary     string
		nextURL     string
		previousURL string
		err         error
	}{
		{
			name:        "middle page of a search",
			inputURL:    "?search=padaria&page=2",
			pageLen:     5,
			syncs:       13,
			page:        2,
			summary:     "6-10 of 13",
			nextURL:     "?page=3&search=padaria",
			previousURL: "?page=1&search=padaria",
		},
		{
			name:     "single page",
			inputURL: "?search=padaria&page=1",
			pageLen:  5,
			syncs:    5,
			page:     1,
			summary:  "1-5 of 5",
		},
		{
			name:    "no syncs recorded",
			pageLen: 15,
			syncs:   0,
			page:    1,
			summary: "0 of 0",
		},
		{
			name:        "last page is short",
			inputURL:    "?page=3",
			pageLen:     5,
			syncs:       14,
			page:        3,
			summary:     "11-14 of 14",
			previousURL: "?page=2",
		},
		{
			name:     "empty search and unknown params are not carried",
			inputURL: "?search=&sort=desc&page=1",
			pageLen:  5,
			syncs:    6,
			page:     1,
			summary:  "1-5 of 6",
			nextURL:  "?page=2",
		},
		{
			name:    "page below one is the first page",
			pageLen: 5,
			syncs:   6,
			page:    0,
			summary: "1-5 of 6",
			nextURL: "?page=2",
		},
		{
			name:    "invalid page length",
			pageLen: -5,
			syncs:   5,
			page:    1,
			err:     ErrInvalidPageLen,
		},
		{
			name:     "page beyond the last",
			inputURL: "?page=4",
			pageLen:  5,
			syncs:    14,
			page:     4,
			err:      ErrInvalidPageNo{4, 3},
		},
	}

	for ii, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", ii, tt.name), func(t *testing.T) {

			parsedURL, err := url.Parse(tt.inputURL)
			if err != nil {
				t.Fatalf("could not parse inputURL: %v", err)
			}
			pg, err := NewPagination(tt.pageLen, tt.syncs, tt.page, parsedURL.Query())
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("got error %v want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got, want := pg.Summary(), tt.summary; got != want {
				t.Errorf("summary got %q want %q", got, want)
			}
			if got, want := pg.NextURL(), tt.nextURL; got != want {
				t.Errorf("next url error:\ngot  %q\nwant %q", got, want)
			}
			if got, want := pg.PreviousURL(), tt.previousURL; got != want {
				t.Errorf("prev url error:\ngot  %q\nwant %q", got, want)
			}
		})
	}
}
