// Package store is a multi-tenant document metadata store over a single
// wide-column DynamoDB table.
//
// Documents, their tags, rendered-format records, and reusable preset tag
// templates all live in one sparse table, disambiguated by sort-key suffix.
// A tenant (site id) is encoded into every partition key; the empty site id
// is the default tenant and uses unprefixed keys.
//
// # Table layout
//
// Primary index:
//
//	PK                      SK
//	docs#<documentId>       document             document record
//	docs#<parentId>         document\t<childId>  child join row
//	docs#<documentId>       tags\t<tagKey>       document tag
//	docs#<documentId>       format#<contentType> rendered format
//	pre#<presetId>          preset               preset record
//	pre#<presetId>          pretag\t<tagKey>     preset tag
//
// GSI1 is the time index: partition key is the UTC calendar day of
// insertion, sort key the full timestamp. Only top-level documents are
// indexed there. GSI2 lists presets by (type, name).
//
// # Pagination
//
// Paged operations return a [Page] whose [Token] is an opaque cursor over
// the physical last-evaluated key of the exact index queried. Replaying a
// token against a different operation is undefined. A nil token means no
// more pages.
//
// # Consistency
//
// Single-item writes and transactional batches ([DocumentStore.AddTags],
// the multi-get chunks of [DocumentStore.FindDocuments]) are atomic. The
// surrounding multi-step sequences are not: saving a document then its
// tags, and the delete cascade, can stop partway on error. Operations are
// idempotent by key, so retrying to completion is safe.
package store
