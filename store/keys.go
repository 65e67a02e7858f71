package store

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/quireio/quire/internal/sitekey"
)

// TagDelimiter is the reserved field delimiter. Tag keys containing it are
// rejected before any write.
const TagDelimiter = "\t"

// Attribute names of the composite keys on the table and its indexes.
const (
	attrPK     = "PK"
	attrSK     = "SK"
	attrGSI1PK = "GSI1PK"
	attrGSI1SK = "GSI1SK"
	attrGSI2PK = "GSI2PK"
	attrGSI2SK = "GSI2SK"
)

// Sort-key prefixes disambiguating the entities sharing the table.
const (
	prefixDocs       = "docs#"
	prefixTags       = "tags" + TagDelimiter
	prefixFormat     = "format#"
	prefixPreset     = "pre#"
	prefixPresetTags = "pretag" + TagDelimiter

	skDocument = "document"
	skPreset   = "preset"
)

// Time formats. The date-index partition key is a UTC calendar day; its sort
// key is the full timestamp, which sorts lexicographically within a day.
const (
	dateKeyFormat   = "2006-01-02"
	timestampFormat = "2006-01-02T15:04:05-0700"
)

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampFormat, s)
}

// tableKey is a physical composite key on the primary index.
type tableKey struct {
	pk string
	sk string
}

func (k tableKey) attrs() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: k.pk},
		attrSK: &types.AttributeValueMemberS{Value: k.sk},
	}
}

func keysDocument(siteID, documentID string) tableKey {
	return tableKey{pk: sitekey.Create(siteID, prefixDocs+documentID), sk: skDocument}
}

// keysChildDocument returns the join-row key for a child document under the
// parent's key space.
func keysChildDocument(siteID, parentID, childID string) tableKey {
	return tableKey{
		pk: sitekey.Create(siteID, prefixDocs+parentID),
		sk: skDocument + TagDelimiter + childID,
	}
}

func keysDocumentTag(siteID, documentID, tagKey string) tableKey {
	return tableKey{
		pk: sitekey.Create(siteID, prefixDocs+documentID),
		sk: prefixTags + tagKey,
	}
}

func keysDocumentFormat(siteID, documentID, contentType string) tableKey {
	return tableKey{
		pk: sitekey.Create(siteID, prefixDocs+documentID),
		sk: prefixFormat + contentType,
	}
}

func keysPreset(siteID, presetID string) tableKey {
	return tableKey{pk: sitekey.Create(siteID, prefixPreset+presetID), sk: skPreset}
}

func keysPresetTag(siteID, presetID, tagKey string) tableKey {
	return tableKey{
		pk: sitekey.Create(siteID, prefixPreset+presetID),
		sk: prefixPresetTags + tagKey,
	}
}

// presetTypePK is the (type, name) index partition key.
func presetTypePK(siteID, presetType string) string {
	return sitekey.Create(siteID, prefixPreset+presetType)
}

// presetTypeSK orders presets of a type by name; the id suffix keeps keys
// unique across presets sharing a name.
func presetTypeSK(name, presetID string) string {
	return name + TagDelimiter + presetID
}
