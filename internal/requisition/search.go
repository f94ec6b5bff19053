package requisition

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const queryTimeLayout = "2006-01-02T15:04:05.000Z"

// SearchParams filters requisition searches. ShowBatchRequisitions only
// affects the offline path and is never sent to the server.
type SearchParams struct {
	Facility              string
	Program               string
	InitiatedDateFrom     *time.Time
	InitiatedDateTo       *time.Time
	RequisitionStatus     []Status
	Emergency             *bool
	Page                  int
	Size                  int
	ShowBatchRequisitions bool
}

// Query serializes the params for the remote search endpoint. Multi-valued
// filters are repeated once per value.
func (p SearchParams) Query() url.Values {
	q := url.Values{}
	if p.Facility != "" {
		q.Set("facility", p.Facility)
	}
	if p.Program != "" {
		q.Set("program", p.Program)
	}
	if p.InitiatedDateFrom != nil {
		q.Set("initiatedDateFrom", p.InitiatedDateFrom.UTC().Format(queryTimeLayout))
	}
	if p.InitiatedDateTo != nil {
		q.Set("initiatedDateTo", p.InitiatedDateTo.UTC().Format(queryTimeLayout))
	}
	for _, status := range p.RequisitionStatus {
		q.Add("requisitionStatus", string(status))
	}
	if p.Emergency != nil {
		q.Set("emergency", strconv.FormatBool(*p.Emergency))
	}
	if p.Page > 0 || p.Size > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Size > 0 {
		q.Set("size", strconv.Itoa(p.Size))
	}
	return q
}

// Matches is the offline search predicate over the single requisition store.
func (p SearchParams) Matches(rec Record) bool {
	r := rec.Requisition
	if p.Facility != "" && r.Facility.ID != p.Facility {
		return false
	}
	if !p.MatchesProgram(rec) {
		return false
	}
	if len(p.RequisitionStatus) > 0 && !containsStatus(p.RequisitionStatus, r.Status) {
		return false
	}
	if p.Emergency != nil && r.Emergency != *p.Emergency {
		return false
	}
	if p.InitiatedDateFrom != nil && (r.CreatedDate == nil || r.CreatedDate.Before(*p.InitiatedDateFrom)) {
		return false
	}
	if p.InitiatedDateTo != nil && (r.CreatedDate == nil || r.CreatedDate.After(*p.InitiatedDateTo)) {
		return false
	}
	return true
}

// MatchesProgram is the offline predicate over the batch store, which is
// filtered by program only.
func (p SearchParams) MatchesProgram(rec Record) bool {
	return p.Program == "" || rec.Requisition.Program.ID == p.Program
}

func containsStatus(statuses []Status, s Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSearchParams reads search params from a query string, as sent by
// the UI.
func ParseSearchParams(q url.Values) (SearchParams, error) {
	p := SearchParams{
		Facility: q.Get("facility"),
		Program:  q.Get("program"),
	}

	for _, raw := range q["requisitionStatus"] {
		status := Status(raw)
		if !status.Valid() {
			return p, fmt.Errorf("unknown requisition status %q", raw)
		}
		p.RequisitionStatus = append(p.RequisitionStatus, status)
	}

	var err error
	if p.InitiatedDateFrom, err = parseQueryTime(q.Get("initiatedDateFrom")); err != nil {
		return p, fmt.Errorf("initiatedDateFrom: %w", err)
	}
	if p.InitiatedDateTo, err = parseQueryTime(q.Get("initiatedDateTo")); err != nil {
		return p, fmt.Errorf("initiatedDateTo: %w", err)
	}

	if raw := q.Get("emergency"); raw != "" {
		emergency, err := strconv.ParseBool(raw)
		if err != nil {
			return p, fmt.Errorf("emergency: %w", err)
		}
		p.Emergency = &emergency
	}
	if raw := q.Get("showBatchRequisitions"); raw != "" {
		if p.ShowBatchRequisitions, err = strconv.ParseBool(raw); err != nil {
			return p, fmt.Errorf("showBatchRequisitions: %w", err)
		}
	}
	if raw := q.Get("page"); raw != "" {
		if p.Page, err = strconv.Atoi(raw); err != nil || p.Page < 0 {
			return p, fmt.Errorf("invalid page %q", raw)
		}
	}
	if raw := q.Get("size"); raw != "" {
		if p.Size, err = strconv.Atoi(raw); err != nil || p.Size < 0 {
			return p, fmt.Errorf("invalid size %q", raw)
		}
	}
	return p, nil
}

func parseQueryTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, dateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised time %q", raw)
}
