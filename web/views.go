package web

/* view types for the web server */

import (
	"time"

	"github.com/dustin/go-humanize"

	"boletos/billing"
	"boletos/db"
	"boletos/internal/values"
)

// viewResult is a view version of billing.SyncResult.
type viewResult struct {
	*billing.SyncResult
	Passed     bool
	Failed     int
	TotalReais string // the total formatted from its value
}

// newViewResult wraps a billing.SyncResult for templates.
func newViewResult(r *billing.SyncResult) *viewResult {
	vr := &viewResult{
		SyncResult: r,
		Passed:     r.Passed(),
	}
	for _, c := range r.Checks {
		if !c.Pass {
			vr.Failed++
		}
	}
	if r.Total != "" {
		vr.TotalReais = values.FormatReais(r.TotalNum)
	}
	return vr
}

// viewSync is a view version of the db.Sync type.
type viewSync struct {
	db.Sync
	When  string // relative to now, eg "3 minutes ago"
	Start string
	Took  string
}

// newViewSyncs maps db.Sync records to a slice of viewSync.
func newViewSyncs(syncs []db.Sync, now time.Time) []viewSync {
	vs := make([]viewSync, len(syncs))
	for i, s := range syncs {
		started := s.Started()
		vs[i].Sync = s
		vs[i].When = humanize.RelTime(started, now, "ago", "from now")
		vs[i].Start = started.Local().Format("02/01/2006 15:04:05")
		vs[i].Took = s.Duration().Round(10 * time.Millisecond).String()
	}
	return vs
}
