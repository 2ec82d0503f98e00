package models

// Request structs for the settlement endpoints. Proofs may also arrive as a
// multipart file, in which case the URL comes from blob storage.
type UploadProofRequest struct {
	ProofURL string `json:"proofUrl" form:"proofUrl"`
}

type VerifyProofRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

type ToggleManualRequest struct {
	IsPaid *bool `json:"isPaid" binding:"required"`
}

type ReceiptRequest struct {
	URL string `json:"url" form:"url"`
}

// UploadResult is returned by the upload endpoints.
type UploadResult struct {
	URL string `json:"url"`
}
