package task

// DocumentMergePayload asks the document pipeline to merge an upload
// session into category PDFs attached to the load.
type DocumentMergePayload struct {
	SessionID string `json:"session_id"`
	LoadID    string `json:"load_id"`
}

// InvoiceEmailPayload asks the billing system to render and send the
// invoice for a load. The log row is created before the task runs so
// the API can report status immediately.
type InvoiceEmailPayload struct {
	LoadID       string `json:"load_id"`
	InvoiceLogID string `json:"invoice_log_id"`
}

// SearchIndexPayload upserts or deletes one entity in the search
// index. Entity is one of load, customer, carrier, address.
type SearchIndexPayload struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

// AddressUsagePayload records that a stop used an address.
type AddressUsagePayload struct {
	StopID    string `json:"stop_id"`
	AddressID string `json:"address_id"`
}
