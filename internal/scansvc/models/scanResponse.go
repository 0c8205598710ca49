package models

// ScanResponse is the aggregated outcome of one /scan request.
type ScanResponse struct {
	OK            bool   `json:"ok"`
	Message       string `json:"message"`
	PicnicEnabled bool   `json:"picnic_enabled"`
	PicnicOK      bool   `json:"picnic_ok"`
	PicnicMessage string `json:"picnic_message"`
}

// ScanRequest is the JSON body accepted by POST /scan. Token and the picnic
// preference may also arrive via headers or query string.
type ScanRequest struct {
	Code          string      `json:"code"`
	Token         string      `json:"token"`
	PicnicEnabled interface{} `json:"picnic_enabled"` // bool, number or string; parsed leniently
}
