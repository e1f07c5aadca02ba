package domain

// UploadFailed is the location sentinel of a content reference whose upload failed.
const UploadFailed = "UPLOAD_FAILED"

// ContentReference points at one file stored in the content-addressed store.
// Reason carries the upload failure message when LocationURI is UploadFailed.
type ContentReference struct {
	OriginalName string `json:"name"`
	LocationURI  string `json:"link"`
	Reason       string `json:"error,omitempty"`
}

func (c ContentReference) Failed() bool {
	return c.LocationURI == "" || c.LocationURI == UploadFailed
}

// MetadataDocument is the credential metadata uploaded next to the asset.
// Field order is part of the serialized form and must not change.
type MetadataDocument struct {
	SubjectName     string `json:"studentName"`
	CredentialTitle string `json:"certificateName"`
	IssueDate       string `json:"issueDate"`
	ContentLink     string `json:"ipfsLink"`
	ExtraData       string `json:"extraData"`
}
