package requisition

// ToBatch reduces a full requisition to the fields the batch approval grid
// works with. Sync bookkeeping is carried over unchanged, and modifiedDate
// is kept so later reconciliation can still compare versions.
func ToBatch(rec Record) Record {
	src := rec.Requisition
	dst := Requisition{
		ID:            src.ID,
		Status:        src.Status,
		ModifiedDate:  src.ModifiedDate.clone(),
		StatusChanges: src.Clone().StatusChanges,
		Program:       src.Program,
		Facility:      src.Facility,
		ProcessingPeriod: ProcessingPeriod{
			ID:        src.ProcessingPeriod.ID,
			Name:      src.ProcessingPeriod.Name,
			StartDate: src.ProcessingPeriod.StartDate.clone(),
			EndDate:   src.ProcessingPeriod.EndDate.clone(),
		},
		LineItems: make([]LineItem, 0, len(src.LineItems)),
	}

	for _, li := range src.LineItems {
		item := li.Clone()
		dst.LineItems = append(dst.LineItems, LineItem{
			ID:               item.ID,
			ApprovedQuantity: item.ApprovedQuantity,
			PricePerPack:     item.PricePerPack,
			TotalCost:        item.TotalCost,
			Skipped:          item.Skipped,
			Orderable:        item.Orderable,
		})
	}

	return Record{Requisition: dst, Meta: rec.Meta}
}
