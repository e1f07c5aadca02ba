package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kursadbilgin/certmint/internal/domain"
)

// Build derives the metadata document for a record. contentLink overrides the
// record's own link when the asset was uploaded in the same run.
func Build(record domain.IssuanceRecord, contentLink string) domain.MetadataDocument {
	if contentLink == "" {
		contentLink = record.ContentLink
	}

	return domain.MetadataDocument{
		SubjectName:     record.SubjectName,
		CredentialTitle: record.CredentialTitle,
		IssueDate:       record.IssueDate,
		ContentLink:     contentLink,
		ExtraData:       record.ExtraData,
	}
}

// Marshal encodes doc as compact JSON with a fixed key order.
// Identical documents always produce identical bytes.
func Marshal(doc domain.MetadataDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// FileName is the name the metadata document is uploaded under.
func FileName(index int) string {
	return fmt.Sprintf("metadata_%d.json", index)
}
