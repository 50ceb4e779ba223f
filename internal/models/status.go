package models

import "time"

// SystemStatus is reported by the external chat service on GET /status.
type SystemStatus struct {
	VectorstoreInitialized bool     `json:"vectorstore_initialized"`
	ChainInitialized       *bool    `json:"chain_initialized,omitempty"`
	IndexedPDFs            int      `json:"indexed_pdfs"`
	LastScanTime           *float64 `json:"last_scan_time"`
}

// LastScan converts LastScanTime (epoch seconds) to a time. ok is false when no scan has happened.
func (s SystemStatus) LastScan() (t time.Time, ok bool) {
	if s.LastScanTime == nil || *s.LastScanTime <= 0 {
		return time.Time{}, false
	}
	sec := int64(*s.LastScanTime)
	nsec := int64((*s.LastScanTime - float64(sec)) * 1e9)
	return time.Unix(sec, nsec), true
}

// ScanReply is the body returned by POST /scan.
type ScanReply struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
