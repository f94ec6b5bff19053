package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"requisition-sync/internal/requisition"
)

// GetRequisition fetches a single requisition.
func (c *Client) GetRequisition(ctx context.Context, id string) (requisition.Requisition, error) {
	var r requisition.Requisition
	err := c.do(ctx, http.MethodGet, "/requisitions/"+url.PathEscape(id), nil, nil, &r)
	return r, err
}

// GetStatusMessages fetches the status messages of a requisition.
func (c *Client) GetStatusMessages(ctx context.Context, id string) ([]requisition.StatusMessage, error) {
	var msgs []requisition.StatusMessage
	err := c.do(ctx, http.MethodGet, "/requisitions/"+url.PathEscape(id)+"/statusMessages", nil, nil, &msgs)
	return msgs, err
}

// Initiate creates a requisition for the facility, program and period.
func (c *Client) Initiate(ctx context.Context, p requisition.InitiateParams) (requisition.Requisition, error) {
	query := url.Values{}
	query.Set("emergency", strconv.FormatBool(p.Emergency))
	query.Set("facility", p.FacilityID)
	query.Set("program", p.ProgramID)
	query.Set("suggestedPeriod", p.PeriodID)

	var r requisition.Requisition
	err := c.do(ctx, http.MethodPost, "/requisitions/initiate", query, nil, &r)
	return r, err
}

// Search runs a paginated requisition search.
func (c *Client) Search(ctx context.Context, params requisition.SearchParams) (requisition.Page[requisition.Requisition], error) {
	var page requisition.Page[requisition.Requisition]
	err := c.do(ctx, http.MethodGet, "/requisitions/search", params.Query(), nil, &page)
	return page, err
}

// ForConvert lists approved requisitions that can be converted to orders.
func (c *Client) ForConvert(ctx context.Context, query url.Values) (requisition.Page[requisition.ConvertCandidate], error) {
	var page requisition.Page[requisition.ConvertCandidate]
	err := c.do(ctx, http.MethodGet, "/requisitions/requisitionsForConvert", query, nil, &page)
	return page, err
}

// ConvertToOrder converts requisitions into orders.
func (c *Client) ConvertToOrder(ctx context.Context, items []requisition.ConvertItem) error {
	return c.do(ctx, http.MethodPost, "/requisitions/convertToOrder", nil, items, nil)
}
