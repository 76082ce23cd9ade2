package dto

// QRIssueResponse is returned from POST /qr/generate.
type QRIssueResponse struct {
	QRCode    string `json:"qrCode"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// QRScanRequest is the body of POST /qr/scan. QRData carries either the bare token or the
// JSON payload read from the code.
type QRScanRequest struct {
	QRData string `json:"qrData" validate:"required"`
}

// QRScanResponse acknowledges a committed redemption.
type QRScanResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
