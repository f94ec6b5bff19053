package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requisition-sync/config"
	"requisition-sync/internal/apperror"
	"requisition-sync/internal/requisition"
	applog "requisition-sync/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&config.RemoteConfig{
		BaseURL:     server.URL,
		AccessToken: "token",
		Headers:     map[string]string{"X-Client": "rnrsyncd"},
		Timeout:     5 * time.Second,
		ProbePath:   "/health",
	}, applog.Nop())
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_GetRequisition(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/requisitions/1", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "rnrsyncd", r.Header.Get("X-Client"))
		w.Write([]byte(`{"id":"1","status":"AUTHORIZED","modifiedDate":[2016,4,30,16,21,33],"createdDate":null,
			"processingPeriod":{"id":"p","startDate":[2016,4,1],"endDate":null,"processingSchedule":null}}`))
	})

	r, err := client.GetRequisition(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "1", r.ID)
	assert.Equal(t, requisition.StatusAuthorized, r.Status)
	require.NotNil(t, r.ModifiedDate)
	assert.Equal(t, time.Date(2016, 4, 30, 16, 21, 33, 0, time.UTC), r.ModifiedDate.Time)
	assert.Nil(t, r.CreatedDate)
	assert.Nil(t, r.ProcessingPeriod.EndDate)
	assert.Nil(t, r.ProcessingPeriod.ProcessingSchedule)
}

func TestClient_StatusErrors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		code   string
	}{
		{name: "not found", status: http.StatusNotFound, code: apperror.CodeNotFound},
		{name: "server error", status: http.StatusInternalServerError, code: apperror.CodeTransport},
		{name: "forbidden", status: http.StatusForbidden, code: apperror.CodeTransport},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})
			_, err := client.GetRequisition(context.Background(), "1")
			require.Error(t, err)
			assert.True(t, apperror.Is(err, tc.code), "got %v", err)
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	client := NewClient(&config.RemoteConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, applog.Nop())
	_, err := client.GetStatusMessages(context.Background(), "1")
	assert.True(t, apperror.Is(err, apperror.CodeTransport))
}

func TestClient_Initiate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/requisitions/initiate", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("emergency"))
		assert.Equal(t, "f1", q.Get("facility"))
		assert.Equal(t, "p1", q.Get("program"))
		assert.Equal(t, "pp1", q.Get("suggestedPeriod"))
		writeJSON(t, w, http.StatusCreated, map[string]any{"id": "new", "status": "INITIATED"})
	})

	r, err := client.Initiate(context.Background(), requisition.InitiateParams{
		FacilityID: "f1", ProgramID: "p1", PeriodID: "pp1", Emergency: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "new", r.ID)
}

func TestClient_SearchRepeatsStatuses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/requisitions/search", r.URL.Path)
		assert.Equal(t, []string{"AUTHORIZED", "IN_APPROVAL"}, r.URL.Query()["requisitionStatus"])
		assert.Empty(t, r.URL.Query().Get("showBatchRequisitions"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"content":       []map[string]any{{"id": "1"}, {"id": "2"}},
			"number":        0,
			"size":          10,
			"totalElements": 2,
		})
	})

	page, err := client.Search(context.Background(), requisition.SearchParams{
		RequisitionStatus:     []requisition.Status{requisition.StatusAuthorized, requisition.StatusInApproval},
		ShowBatchRequisitions: true,
		Size:                  10,
	})
	require.NoError(t, err)
	assert.Len(t, page.Content, 2)
	assert.Equal(t, 2, page.TotalElements)
}

func TestClient_ForConvertAndConvert(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/requisitions/requisitionsForConvert":
			assert.Equal(t, "f1", r.URL.Query().Get("filterValue"))
			writeJSON(t, w, http.StatusOK, map[string]any{
				"content": []map[string]any{{
					"requisition":     map[string]any{"id": "1", "status": "APPROVED"},
					"supplyingDepots": []map[string]any{{"id": "d1"}},
				}},
			})
		case "/requisitions/convertToOrder":
			var items []requisition.ConvertItem
			require.NoError(t, json.NewDecoder(r.Body).Decode(&items))
			assert.Equal(t, []requisition.ConvertItem{{RequisitionID: "1", SupplyingDepotID: "d1"}}, items)
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	page, err := client.ForConvert(context.Background(), url.Values{"filterValue": {"f1"}})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "d1", page.Content[0].SupplyingDepots[0].ID)

	err = client.ConvertToOrder(context.Background(), []requisition.ConvertItem{{RequisitionID: "1", SupplyingDepotID: "d1"}})
	assert.NoError(t, err)
}

func TestClient_BatchSaveStripsDerivedFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/requisitions/save", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var sent []map[string]any
		require.NoError(t, json.Unmarshal(body, &sent))
		require.Len(t, sent, 1)
		assert.NotContains(t, sent[0], "meta")
		assert.NotContains(t, sent[0], "modified")
		items := sent[0]["requisitionLineItems"].([]any)
		assert.Nil(t, items[0].(map[string]any)["totalCost"])

		writeJSON(t, w, http.StatusOK, map[string]any{"requisitionDtos": []map[string]any{{"id": "1"}}})
	})

	cost := decimal.NewFromInt(10)
	saved, err := client.BatchSave(context.Background(), []requisition.Record{{
		Requisition: requisition.Requisition{
			ID:        "1",
			LineItems: []requisition.LineItem{{ID: "li", TotalCost: &cost}},
		},
		Meta: requisition.SyncMeta{Modified: true},
	}})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "1", saved[0].ID)
}

func TestClient_BatchSavePartialFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]any{
			"requisitionDtos": []map[string]any{{"id": "1"}},
			"requisitionErrors": []map[string]any{{
				"requisitionId": "2",
				"errorMessage":  map[string]any{"message": "invalid"},
			}},
		})
	})

	saved, err := client.BatchSave(context.Background(), []requisition.Record{
		{Requisition: requisition.Requisition{ID: "1"}},
		{Requisition: requisition.Requisition{ID: "2"}},
	})
	require.Len(t, saved, 1)

	var partial *PartialFailure
	require.True(t, errors.As(err, &partial))
	msg, ok := partial.MessageFor("2")
	assert.True(t, ok)
	assert.Equal(t, "invalid", msg)
	_, ok = partial.MessageFor("1")
	assert.False(t, ok)
	assert.Equal(t, "1 requisitions succeeded, 1 failed", partial.Error())
}

func TestClient_BatchFetchAndApprove(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var ids []string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ids))
		assert.Equal(t, http.MethodPost, r.Method)
		switch r.URL.Path {
		case "/requisitions/batch", "/requisitions/batchApproval":
			dtos := make([]map[string]any, 0, len(ids))
			for _, id := range ids {
				dtos = append(dtos, map[string]any{"id": id})
			}
			writeJSON(t, w, http.StatusOK, map[string]any{"requisitionDtos": dtos})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	fetched, err := client.BatchFetch(context.Background(), []string{"1", "2"})
	require.NoError(t, err)
	assert.Len(t, fetched, 2)

	approved, err := client.BatchApprove(context.Background(), []string{"1"})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "1", approved[0].ID)
}

func TestClient_BatchApproveServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := client.BatchApprove(context.Background(), []string{"1"})
	require.Error(t, err)
	var partial *PartialFailure
	assert.False(t, errors.As(err, &partial))
	assert.True(t, apperror.Is(err, apperror.CodeTransport))
}

type stubProber struct{ err error }

func (s *stubProber) Probe(context.Context) error { return s.err }

func TestMonitor(t *testing.T) {
	prober := &stubProber{}
	m := NewMonitor(prober, false, applog.Nop())
	assert.True(t, m.IsOffline(), "offline until first probe")

	m.Check(context.Background())
	assert.False(t, m.IsOffline())

	prober.err = errors.New("down")
	m.Check(context.Background())
	assert.True(t, m.IsOffline())

	prober.err = nil
	m.Check(context.Background())
	m.ForceOffline(true)
	assert.True(t, m.IsOffline())
	m.ForceOffline(false)
	assert.False(t, m.IsOffline())
}

func TestClient_Probe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	assert.NoError(t, client.Probe(context.Background()))
}
