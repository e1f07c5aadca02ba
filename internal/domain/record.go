package domain

import (
	"fmt"
	"strings"
)

// AssetLinkPrefix marks a content link cell that names an uploaded asset
// instead of an existing content store location, e.g. "file:diploma.pdf".
const AssetLinkPrefix = "file:"

// Asset is a raw credential file (e.g. a PDF diploma) attached to a record.
type Asset struct {
	Name string
	Data []byte
}

// IssuanceRecord is one row of a batch describing a single credential to mint.
// Records are produced by the extractor and never mutated afterwards.
type IssuanceRecord struct {
	Row             int
	SubjectAddress  string
	SubjectName     string
	CredentialTitle string
	IssueDate       string
	ContentLink     string
	ExtraData       string
	Asset           *Asset
}

// HasAsset reports whether a raw file must be uploaded before metadata is built.
func (r IssuanceRecord) HasAsset() bool {
	return r.Asset != nil && len(r.Asset.Data) > 0
}

// AssetReference returns the asset name a "file:<name>" content link points at.
func (r IssuanceRecord) AssetReference() (string, bool) {
	link := strings.TrimSpace(r.ContentLink)
	if !strings.HasPrefix(link, AssetLinkPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(link, AssetLinkPrefix)), true
}

// Eligible checks the field presence required for submission.
func (r IssuanceRecord) Eligible() error {
	if strings.TrimSpace(r.SubjectAddress) == "" {
		return fmt.Errorf("%w: subject address is required (row %d)", ErrValidation, r.Row)
	}
	if strings.TrimSpace(r.SubjectName) == "" {
		return fmt.Errorf("%w: subject name is required (row %d)", ErrValidation, r.Row)
	}
	if name, ok := r.AssetReference(); ok && !r.HasAsset() {
		return fmt.Errorf("%w: missing asset %q (row %d)", ErrValidation, name, r.Row)
	}
	return nil
}

// WithAsset returns a copy of the record carrying the given asset.
func (r IssuanceRecord) WithAsset(asset *Asset) IssuanceRecord {
	r.Asset = asset
	return r
}

// WithSubjectName returns a copy of the record with the subject name replaced.
func (r IssuanceRecord) WithSubjectName(name string) IssuanceRecord {
	r.SubjectName = name
	return r
}
