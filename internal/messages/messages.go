// Package messages resolves UI message keys to English text.
package messages

import (
	"fmt"
	"sort"
	"strings"
)

// Message keys used by the batch approval flow.
const (
	ProductCode                   = "requisitionBatchApproval.productCode"
	Product                       = "requisitionBatchApproval.product"
	ApprovedQuantity              = "requisitionBatchApproval.approvedQuantity"
	Cost                          = "requisitionBatchApproval.cost"
	TotalQuantityForAllFacilities = "requisitionBatchApproval.totalQuantityForAllFacilities"
	TotalCostForAllFacilities     = "requisitionBatchApproval.totalCostForAllFacilities"
	RevertConfirm                 = "requisitionBatchApproval.revertConfirm"
	ApprovalConfirm               = "requisitionBatchApproval.approvalConfirm"
	SyncSuccess                   = "requisitionBatchApproval.syncSuccess"
	SyncError                     = "requisitionBatchApproval.syncError"
	ApprovalSuccess               = "requisitionBatchApproval.approvalSuccess"
	ApprovalError                 = "requisitionBatchApproval.approvalError"
	ApproveFailed                 = "requisitionBatchApproval.approveFailed"
)

var catalog = map[string]string{
	ProductCode:                   "Product code",
	Product:                       "Product",
	ApprovedQuantity:              "Approved quantity",
	Cost:                          "Cost",
	TotalQuantityForAllFacilities: "Total quantity for all facilities",
	TotalCostForAllFacilities:     "Total cost for all facilities",
	RevertConfirm:                 "Are you sure you want to revert all changes?",
	ApprovalConfirm:               "Are you sure you want to approve all requisitions?",
	SyncSuccess:                   "${successCount} requisitions synchronized",
	SyncError:                     "${successCount} succeeded, ${errorCount} failed to synchronize",
	ApprovalSuccess:               "${successCount} requisitions approved",
	ApprovalError:                 "${errorCount} requisitions could not be approved",
	ApproveFailed:                 "Requisition could not be approved",
}

// Get returns the text for key with ${name} placeholders filled from
// params. Unknown keys are returned as is.
func Get(key string, params map[string]any) string {
	text, ok := catalog[key]
	if !ok {
		text = key
	}
	if len(params) == 0 {
		return text
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, 2*len(params))
	for _, name := range names {
		pairs = append(pairs, "${"+name+"}", fmt.Sprint(params[name]))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
