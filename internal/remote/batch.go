package remote

import (
	"context"
	"fmt"
	"net/http"

	"requisition-sync/internal/requisition"
)

// ErrorMessage is the server's description of a rejected requisition.
type ErrorMessage struct {
	MessageKey string `json:"messageKey,omitempty"`
	Message    string `json:"message"`
}

// RequisitionError ties an error message to a requisition id.
type RequisitionError struct {
	RequisitionID string       `json:"requisitionId"`
	ErrorMessage  ErrorMessage `json:"errorMessage"`
}

type batchResponse struct {
	RequisitionDtos   []requisition.Requisition `json:"requisitionDtos"`
	RequisitionErrors []RequisitionError        `json:"requisitionErrors"`
}

// PartialFailure is returned by bulk operations when the server accepted
// only some of the requisitions.
type PartialFailure struct {
	Succeeded []requisition.Requisition
	Errors    []RequisitionError
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%d requisitions succeeded, %d failed", len(e.Succeeded), len(e.Errors))
}

// MessageFor returns the error message reported for id.
func (e *PartialFailure) MessageFor(id string) (string, bool) {
	for _, re := range e.Errors {
		if re.RequisitionID == id {
			return re.ErrorMessage.Message, true
		}
	}
	return "", false
}

// BatchFetch fetches several requisitions at once.
func (c *Client) BatchFetch(ctx context.Context, ids []string) ([]requisition.Requisition, error) {
	if ids == nil {
		ids = []string{}
	}
	var resp batchResponse
	if err := c.do(ctx, http.MethodPost, "/requisitions/batch", nil, ids, &resp); err != nil {
		return nil, err
	}
	return resp.RequisitionDtos, nil
}

// BatchSave saves the records. Derived fields and sync bookkeeping are not
// sent. A 400 answer yields the saved subset and a *PartialFailure.
func (c *Client) BatchSave(ctx context.Context, records []requisition.Record) ([]requisition.Requisition, error) {
	payload := make([]requisition.Requisition, 0, len(records))
	for _, r := range records {
		payload = append(payload, r.Upload())
	}
	return c.bulk(ctx, http.MethodPut, "/requisitions/save", payload)
}

// BatchApprove approves the requisitions with the given ids. A 400 answer
// yields the approved subset and a *PartialFailure.
func (c *Client) BatchApprove(ctx context.Context, ids []string) ([]requisition.Requisition, error) {
	if ids == nil {
		ids = []string{}
	}
	return c.bulk(ctx, http.MethodPost, "/requisitions/batchApproval", ids)
}

func (c *Client) bulk(ctx context.Context, method, path string, body any) ([]requisition.Requisition, error) {
	req, err := c.newRequest(ctx, method, path, nil, body)
	if err != nil {
		return nil, err
	}

	status, payload, err := c.send(req)
	if err != nil {
		return nil, err
	}

	if status == http.StatusBadRequest {
		var resp batchResponse
		if err := decode(payload, &resp); err != nil {
			return nil, err
		}
		return resp.RequisitionDtos, &PartialFailure{
			Succeeded: resp.RequisitionDtos,
			Errors:    resp.RequisitionErrors,
		}
	}
	if err := statusError(req, status, payload); err != nil {
		return nil, err
	}

	var resp batchResponse
	if err := decode(payload, &resp); err != nil {
		return nil, err
	}
	return resp.RequisitionDtos, nil
}
