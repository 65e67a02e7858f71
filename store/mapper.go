package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/quireio/quire/internal/sitekey"
)

// Record structs are the physical attribute layout of each entity. The GSI
// attributes are write-only: populated on save, ignored when reading back
// through the primary index.

type documentRecord struct {
	PK                  string `dynamodbav:"PK"`
	SK                  string `dynamodbav:"SK"`
	GSI1PK              string `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK              string `dynamodbav:"GSI1SK,omitempty"`
	DocumentID          string `dynamodbav:"documentId"`
	InsertedDate        string `dynamodbav:"inserteddate"`
	UserID              string `dynamodbav:"userId,omitempty"`
	Path                string `dynamodbav:"path,omitempty"`
	ContentType         string `dynamodbav:"contentType,omitempty"`
	ContentLength       *int64 `dynamodbav:"contentLength,omitempty"`
	Checksum            string `dynamodbav:"checksum,omitempty"`
	BelongsToDocumentID string `dynamodbav:"belongsToDocumentId,omitempty"`
}

type tagRecord struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	DocumentID   string `dynamodbav:"documentId"`
	TagKey       string `dynamodbav:"tagKey"`
	TagValue     string `dynamodbav:"tagValue,omitempty"`
	Type         string `dynamodbav:"type,omitempty"`
	UserID       string `dynamodbav:"userId,omitempty"`
	InsertedDate string `dynamodbav:"inserteddate"`
}

type formatRecord struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	DocumentID   string `dynamodbav:"documentId"`
	ContentType  string `dynamodbav:"contentType"`
	UserID       string `dynamodbav:"userId,omitempty"`
	InsertedDate string `dynamodbav:"inserteddate"`
}

type presetRecord struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	GSI2PK       string `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK       string `dynamodbav:"GSI2SK,omitempty"`
	PresetID     string `dynamodbav:"presetId"`
	Type         string `dynamodbav:"type,omitempty"`
	Name         string `dynamodbav:"name,omitempty"`
	UserID       string `dynamodbav:"userId,omitempty"`
	InsertedDate string `dynamodbav:"inserteddate"`
}

type presetTagRecord struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	PresetID     string `dynamodbav:"presetId"`
	TagKey       string `dynamodbav:"tagKey"`
	UserID       string `dynamodbav:"userId,omitempty"`
	InsertedDate string `dynamodbav:"inserteddate"`
}

func newDocumentRecord(siteID string, key tableKey, doc *Document, saveDateIndex bool) documentRecord {
	fulldate := formatTimestamp(doc.InsertedDate)

	r := documentRecord{
		PK:                  key.pk,
		SK:                  key.sk,
		DocumentID:          doc.DocumentID,
		InsertedDate:        fulldate,
		UserID:              doc.UserID,
		Path:                doc.Path,
		ContentType:         doc.ContentType,
		ContentLength:       doc.ContentLength,
		Checksum:            strings.Trim(doc.Checksum, `"`),
		BelongsToDocumentID: doc.BelongsToDocumentID,
	}

	if saveDateIndex {
		shortdate := doc.InsertedDate.UTC().Format(dateKeyFormat)
		r.GSI1PK = sitekey.Create(siteID, shortdate)
		r.GSI1SK = fulldate
	}

	return r
}

func (r documentRecord) document() (*Document, error) {
	inserted, err := parseTimestamp(r.InsertedDate)
	if err != nil {
		return nil, fmt.Errorf("document %s: parse inserteddate: %w", r.DocumentID, err)
	}
	return &Document{
		DocumentID:          r.DocumentID,
		Path:                r.Path,
		ContentType:         r.ContentType,
		ContentLength:       r.ContentLength,
		Checksum:            r.Checksum,
		UserID:              r.UserID,
		InsertedDate:        inserted,
		BelongsToDocumentID: r.BelongsToDocumentID,
	}, nil
}

func documentFromItem(item map[string]types.AttributeValue) (*Document, error) {
	var r documentRecord
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return r.document()
}

// documentFromItems assembles one Document aggregate from a parent row plus
// its child join rows, as returned by a sort-key-prefix query.
func documentFromItems(items []map[string]types.AttributeValue) (*Document, error) {
	var parent *Document
	var children []Document

	for _, item := range items {
		var r documentRecord
		if err := attributevalue.UnmarshalMap(item, &r); err != nil {
			return nil, fmt.Errorf("unmarshal document: %w", err)
		}
		doc, err := r.document()
		if err != nil {
			return nil, err
		}
		if r.SK == skDocument {
			parent = doc
		} else {
			children = append(children, *doc)
		}
	}

	if parent == nil {
		return nil, nil
	}

	sort.Slice(children, func(i, j int) bool {
		return children[i].DocumentID < children[j].DocumentID
	})
	parent.Children = children

	return parent, nil
}

func newTagRecord(siteID, documentID string, tag DocumentTag) tagRecord {
	return tagRecord{
		PK:           keysDocumentTag(siteID, documentID, tag.Key).pk,
		SK:           keysDocumentTag(siteID, documentID, tag.Key).sk,
		DocumentID:   documentID,
		TagKey:       tag.Key,
		TagValue:     tag.Value,
		Type:         string(tag.Type),
		UserID:       tag.UserID,
		InsertedDate: formatTimestamp(tag.InsertedDate),
	}
}

func tagFromItem(item map[string]types.AttributeValue) (DocumentTag, error) {
	var r tagRecord
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return DocumentTag{}, fmt.Errorf("unmarshal tag: %w", err)
	}
	inserted, err := parseTimestamp(r.InsertedDate)
	if err != nil {
		return DocumentTag{}, fmt.Errorf("tag %s: parse inserteddate: %w", r.TagKey, err)
	}
	typ := DocumentTagType(r.Type)
	if typ == "" {
		typ = TagTypeUserDefined
	}
	return DocumentTag{
		DocumentID:   r.DocumentID,
		Key:          r.TagKey,
		Value:        r.TagValue,
		Type:         typ,
		UserID:       r.UserID,
		InsertedDate: inserted,
	}, nil
}

func newFormatRecord(siteID string, format DocumentFormat) formatRecord {
	key := keysDocumentFormat(siteID, format.DocumentID, format.ContentType)
	return formatRecord{
		PK:           key.pk,
		SK:           key.sk,
		DocumentID:   format.DocumentID,
		ContentType:  format.ContentType,
		UserID:       format.UserID,
		InsertedDate: formatTimestamp(format.InsertedDate),
	}
}

func formatFromItem(item map[string]types.AttributeValue) (DocumentFormat, error) {
	var r formatRecord
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return DocumentFormat{}, fmt.Errorf("unmarshal format: %w", err)
	}
	inserted, err := parseTimestamp(r.InsertedDate)
	if err != nil {
		return DocumentFormat{}, fmt.Errorf("format %s: parse inserteddate: %w", r.ContentType, err)
	}
	return DocumentFormat{
		DocumentID:   r.DocumentID,
		ContentType:  r.ContentType,
		UserID:       r.UserID,
		InsertedDate: inserted,
	}, nil
}

func newPresetRecord(siteID string, preset *Preset) presetRecord {
	key := keysPreset(siteID, preset.ID)
	return presetRecord{
		PK:           key.pk,
		SK:           key.sk,
		GSI2PK:       presetTypePK(siteID, preset.Type),
		GSI2SK:       presetTypeSK(preset.Name, preset.ID),
		PresetID:     preset.ID,
		Type:         preset.Type,
		Name:         preset.Name,
		UserID:       preset.UserID,
		InsertedDate: formatTimestamp(preset.InsertedDate),
	}
}

func presetFromItem(item map[string]types.AttributeValue) (Preset, error) {
	var r presetRecord
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return Preset{}, fmt.Errorf("unmarshal preset: %w", err)
	}
	inserted, err := parseTimestamp(r.InsertedDate)
	if err != nil {
		return Preset{}, fmt.Errorf("preset %s: parse inserteddate: %w", r.PresetID, err)
	}
	return Preset{
		ID:           r.PresetID,
		Type:         r.Type,
		Name:         r.Name,
		UserID:       r.UserID,
		InsertedDate: inserted,
	}, nil
}

func newPresetTagRecord(siteID, presetID string, tag PresetTag) presetTagRecord {
	key := keysPresetTag(siteID, presetID, tag.Key)
	return presetTagRecord{
		PK:           key.pk,
		SK:           key.sk,
		PresetID:     presetID,
		TagKey:       tag.Key,
		UserID:       tag.UserID,
		InsertedDate: formatTimestamp(tag.InsertedDate),
	}
}

func presetTagFromItem(item map[string]types.AttributeValue) (PresetTag, error) {
	var r presetTagRecord
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return PresetTag{}, fmt.Errorf("unmarshal preset tag: %w", err)
	}
	inserted, err := parseTimestamp(r.InsertedDate)
	if err != nil {
		return PresetTag{}, fmt.Errorf("preset tag %s: parse inserteddate: %w", r.TagKey, err)
	}
	return PresetTag{
		PresetID:     r.PresetID,
		Key:          r.TagKey,
		UserID:       r.UserID,
		InsertedDate: inserted,
	}, nil
}
