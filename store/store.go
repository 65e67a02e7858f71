package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// transactGetBatchSize is the transactional-get key limit of the underlying
// table service.
const transactGetBatchSize = 10

// DocumentStore provides document metadata operations over a single
// wide-column table.
//
// The store is stateless; all state lives in the table. Multi-step sequences
// (save document + tags, the delete cascade) are not atomic: a failure
// partway surfaces the underlying error and leaves cleanup to the caller.
// All operations are idempotent by key, so retrying to completion is the
// recommended mitigation.
type DocumentStore struct {
	client DynamoDB
	config Config
}

// New creates a DocumentStore.
func New(client DynamoDB, config Config) (*DocumentStore, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &DocumentStore{
		client: client,
		config: config,
	}, nil
}

// SaveDocument writes the document record, with its date-index attributes,
// then its tags. The two writes are separate calls.
func (s *DocumentStore) SaveDocument(ctx context.Context, siteID string, doc *Document, tags []DocumentTag) error {
	if doc.DocumentID == "" {
		doc.DocumentID = uuid.NewString()
	}
	if doc.InsertedDate.IsZero() {
		doc.InsertedDate = time.Now()
	}

	if err := s.putDocument(ctx, siteID, keysDocument(siteID, doc.DocumentID), doc, true); err != nil {
		return err
	}
	return s.AddTags(ctx, siteID, doc.DocumentID, tags)
}

// SaveDocumentWithChildren saves a document together with its child
// documents. Missing ids are generated. The parent gets its user tags plus
// the system-managed ones: a synthetic "untagged" tag when no user tag is
// supplied, and a "path" tag mirroring the document path. Each child gets a
// join row under the parent's key space and its own top-level row without
// date-index attributes, followed by that child's tags.
func (s *DocumentStore) SaveDocumentWithChildren(ctx context.Context, siteID string, doc *Document, tags []DocumentTag, children []ChildDocument) (*Document, error) {
	now := time.Now()

	if doc.DocumentID == "" {
		doc.DocumentID = uuid.NewString()
	}
	if doc.InsertedDate.IsZero() {
		doc.InsertedDate = now
	}

	generated := generateTags(doc, tags, now)

	if err := s.putDocument(ctx, siteID, keysDocument(siteID, doc.DocumentID), doc, true); err != nil {
		return nil, err
	}
	if err := s.AddTags(ctx, siteID, doc.DocumentID, generated); err != nil {
		return nil, err
	}

	for i := range children {
		child := &children[i].Document
		if child.DocumentID == "" {
			child.DocumentID = uuid.NewString()
		}
		if child.InsertedDate.IsZero() {
			child.InsertedDate = now
		}
		child.BelongsToDocumentID = doc.DocumentID

		joinKey := keysChildDocument(siteID, doc.DocumentID, child.DocumentID)
		if err := s.putDocument(ctx, siteID, joinKey, child, false); err != nil {
			return nil, err
		}
		if err := s.putDocument(ctx, siteID, keysDocument(siteID, child.DocumentID), child, false); err != nil {
			return nil, err
		}
		if err := s.AddTags(ctx, siteID, child.DocumentID, children[i].Tags); err != nil {
			return nil, err
		}

		doc.Children = append(doc.Children, *child)
	}

	return doc, nil
}

// generateTags returns the tag set actually written for a document: the
// caller's tags, a synthetic untagged tag when the caller supplied none, and
// a path tag mirroring the document path.
func generateTags(doc *Document, tags []DocumentTag, now time.Time) []DocumentTag {
	generated := make([]DocumentTag, 0, len(tags)+2)
	for _, tag := range tags {
		if tag.InsertedDate.IsZero() {
			tag.InsertedDate = now
		}
		if tag.UserID == "" {
			tag.UserID = doc.UserID
		}
		generated = append(generated, tag)
	}

	if len(tags) == 0 {
		generated = append(generated, DocumentTag{
			Key:          TagUntagged,
			Type:         TagTypeSystemDefined,
			UserID:       doc.UserID,
			InsertedDate: now,
		})
	}

	if doc.Path != "" {
		generated = append(generated, DocumentTag{
			Key:          TagPath,
			Value:        doc.Path,
			Type:         TagTypeSystemDefined,
			UserID:       doc.UserID,
			InsertedDate: now,
		})
	}

	return generated
}

func (s *DocumentStore) putDocument(ctx context.Context, siteID string, key tableKey, doc *Document, saveDateIndex bool) error {
	record := newDocumentRecord(siteID, key, doc, saveDateIndex)
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.TableName),
		Item:      item,
	})
	return err
}

// AddTags writes tags as one all-or-nothing transactional batch. Tag keys
// containing the reserved delimiter are rejected before any write, and
// caller-supplied tags using a system-reserved key are filtered out unless
// marked system-defined. When the surviving batch contains a user-defined
// tag, the delete of the synthetic untagged row rides in the same
// transaction. An empty batch is a no-op.
func (s *DocumentStore) AddTags(ctx context.Context, siteID, documentID string, tags []DocumentTag) error {
	for _, tag := range tags {
		if strings.Contains(tag.Key, TagDelimiter) {
			return ErrTagKeyInvalid
		}
	}

	var writes []types.TransactWriteItem
	userTagged := false
	writesUntagged := false

	for _, tag := range tags {
		if tag.Type != TagTypeSystemDefined && systemTagKeys[tag.Key] {
			continue
		}
		if tag.Type != TagTypeSystemDefined {
			userTagged = true
		}
		if tag.Key == TagUntagged {
			writesUntagged = true
		}
		if tag.InsertedDate.IsZero() {
			tag.InsertedDate = time.Now()
		}

		item, err := attributevalue.MarshalMap(newTagRecord(siteID, documentID, tag))
		if err != nil {
			return fmt.Errorf("marshal tag %s: %w", tag.Key, err)
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.config.TableName),
				Item:      item,
			},
		})
	}

	if len(writes) == 0 {
		return nil
	}

	// A transaction cannot touch the same key twice.
	if userTagged && !writesUntagged {
		writes = append(writes, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(s.config.TableName),
				Key:       keysDocumentTag(siteID, documentID, TagUntagged).attrs(),
			},
		})
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	return err
}

// RemoveTags deletes each tag independently; the deletes are not
// transactional.
func (s *DocumentStore) RemoveTags(ctx context.Context, siteID, documentID string, tagKeys []string) error {
	for _, tagKey := range tagKeys {
		if err := s.deleteKey(ctx, keysDocumentTag(siteID, documentID, tagKey)); err != nil {
			return err
		}
	}
	return nil
}

// FindDocument looks up a document. With includeChildren it performs a
// sort-key-prefix query and assembles the parent with its nested child list.
// Returns (nil, nil) when the document does not exist.
func (s *DocumentStore) FindDocument(ctx context.Context, siteID, documentID string, includeChildren bool) (*Document, error) {
	key := keysDocument(siteID, documentID)

	if includeChildren {
		items, err := s.queryAll(ctx, key.pk, key.sk)
		if err != nil {
			return nil, err
		}
		return documentFromItems(items)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       key.attrs(),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return documentFromItem(out.Item)
}

// FindDocuments resolves ids through transactional multi-gets, chunked at
// the provider's transactional-get limit. Each chunk is all-or-nothing.
// Returns nil, not an empty slice, when no ids resolve.
func (s *DocumentStore) FindDocuments(ctx context.Context, siteID string, ids []string) ([]Document, error) {
	var docs []Document

	for start := 0; start < len(ids); start += transactGetBatchSize {
		end := min(start+transactGetBatchSize, len(ids))

		gets := make([]types.TransactGetItem, 0, end-start)
		for _, id := range ids[start:end] {
			gets = append(gets, types.TransactGetItem{
				Get: &types.Get{
					TableName: aws.String(s.config.TableName),
					Key:       keysDocument(siteID, id).attrs(),
				},
			})
		}

		out, err := s.client.TransactGetItems(ctx, &dynamodb.TransactGetItemsInput{
			TransactItems: gets,
		})
		if err != nil {
			return nil, err
		}

		for _, resp := range out.Responses {
			if len(resp.Item) == 0 {
				continue
			}
			doc, err := documentFromItem(resp.Item)
			if err != nil {
				return nil, err
			}
			docs = append(docs, *doc)
		}
	}

	if len(docs) == 0 {
		return nil, nil
	}
	return docs, nil
}

// DeleteDocument removes a document and everything under it: formats, tags,
// child join rows and child top-level rows, then the document's own row.
// The cascade is not atomic.
func (s *DocumentStore) DeleteDocument(ctx context.Context, siteID, documentID string) error {
	if err := s.DeleteDocumentFormats(ctx, siteID, documentID); err != nil {
		return err
	}
	if err := s.DeleteDocumentTags(ctx, siteID, documentID); err != nil {
		return err
	}

	doc, err := s.FindDocument(ctx, siteID, documentID, true)
	if err != nil {
		return err
	}
	if doc != nil {
		for _, child := range doc.Children {
			if err := s.deleteKey(ctx, keysChildDocument(siteID, documentID, child.DocumentID)); err != nil {
				return err
			}
			if err := s.deleteKey(ctx, keysDocument(siteID, child.DocumentID)); err != nil {
				return err
			}
		}
	}

	return s.deleteKey(ctx, keysDocument(siteID, documentID))
}

// FindDocumentTag looks up a single tag. Returns (nil, nil) when absent.
func (s *DocumentStore) FindDocumentTag(ctx context.Context, siteID, documentID, tagKey string) (*DocumentTag, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       keysDocumentTag(siteID, documentID, tagKey).attrs(),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	tag, err := tagFromItem(out.Item)
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// FindDocumentTags returns one page of a document's tags, ordered by key.
func (s *DocumentStore) FindDocumentTags(ctx context.Context, siteID, documentID string, token *Token, limit int32) (*Page[DocumentTag], error) {
	key := keysDocumentTag(siteID, documentID, "")
	items, next, err := s.queryPage(ctx, key.pk, key.sk, token, limit)
	if err != nil {
		return nil, err
	}
	return mapPage(items, next, tagFromItem)
}

// DeleteDocumentTag deletes a single tag row.
func (s *DocumentStore) DeleteDocumentTag(ctx context.Context, siteID, documentID, tagKey string) error {
	return s.deleteKey(ctx, keysDocumentTag(siteID, documentID, tagKey))
}

// DeleteDocumentTags deletes all of a document's tags, paging until no
// continuation token is returned.
func (s *DocumentStore) DeleteDocumentTags(ctx context.Context, siteID, documentID string) error {
	var token *Token
	for {
		page, err := s.FindDocumentTags(ctx, siteID, documentID, token, s.config.ScanPageSize)
		if err != nil {
			return err
		}
		for _, tag := range page.Results {
			if err := s.DeleteDocumentTag(ctx, siteID, documentID, tag.Key); err != nil {
				return err
			}
		}
		token = page.Token
		if token == nil {
			return nil
		}
	}
}

// SaveDocumentFormat writes a rendered-format record.
func (s *DocumentStore) SaveDocumentFormat(ctx context.Context, siteID string, format DocumentFormat) (DocumentFormat, error) {
	if format.InsertedDate.IsZero() {
		format.InsertedDate = time.Now()
	}

	item, err := attributevalue.MarshalMap(newFormatRecord(siteID, format))
	if err != nil {
		return DocumentFormat{}, fmt.Errorf("marshal format: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.TableName),
		Item:      item,
	})
	return format, err
}

// FindDocumentFormat looks up a single format. Returns (nil, nil) when
// absent.
func (s *DocumentStore) FindDocumentFormat(ctx context.Context, siteID, documentID, contentType string) (*DocumentFormat, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       keysDocumentFormat(siteID, documentID, contentType).attrs(),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	format, err := formatFromItem(out.Item)
	if err != nil {
		return nil, err
	}
	return &format, nil
}

// FindDocumentFormats returns one page of a document's formats.
func (s *DocumentStore) FindDocumentFormats(ctx context.Context, siteID, documentID string, token *Token, limit int32) (*Page[DocumentFormat], error) {
	key := keysDocumentFormat(siteID, documentID, "")
	items, next, err := s.queryPage(ctx, key.pk, key.sk, token, limit)
	if err != nil {
		return nil, err
	}
	return mapPage(items, next, formatFromItem)
}

// DeleteDocumentFormat deletes a single format row.
func (s *DocumentStore) DeleteDocumentFormat(ctx context.Context, siteID, documentID, contentType string) error {
	return s.deleteKey(ctx, keysDocumentFormat(siteID, documentID, contentType))
}

// DeleteDocumentFormats deletes all of a document's formats, paging until no
// continuation token is returned.
func (s *DocumentStore) DeleteDocumentFormats(ctx context.Context, siteID, documentID string) error {
	var token *Token
	for {
		page, err := s.FindDocumentFormats(ctx, siteID, documentID, token, s.config.ScanPageSize)
		if err != nil {
			return err
		}
		for _, format := range page.Results {
			if err := s.DeleteDocumentFormat(ctx, siteID, documentID, format.ContentType); err != nil {
				return err
			}
		}
		token = page.Token
		if token == nil {
			return nil
		}
	}
}

func (s *DocumentStore) deleteKey(ctx context.Context, key tableKey) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       key.attrs(),
	})
	return err
}

// queryPage runs one partition-key-equality query with an optional sort-key
// prefix on the primary index.
func (s *DocumentStore) queryPage(ctx context.Context, pk, skPrefix string, token *Token, limit int32) ([]map[string]types.AttributeValue, *Token, error) {
	expr := attrPK + " = :pk"
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: pk},
	}

	if skPrefix != "" {
		expr += " and begins_with(" + attrSK + ", :sk)"
		values[":sk"] = &types.AttributeValueMemberS{Value: skPrefix}
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.TableName),
		KeyConditionExpression:    aws.String(expr),
		ExpressionAttributeValues: values,
		Limit:                     aws.Int32(limit),
		ExclusiveStartKey:         token.StartKey(),
	})
	if err != nil {
		return nil, nil, err
	}

	return out.Items, NewToken(out.LastEvaluatedKey), nil
}

// queryAll drains every page of a sort-key-prefix query.
func (s *DocumentStore) queryAll(ctx context.Context, pk, skPrefix string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	var token *Token

	for {
		page, next, err := s.queryPage(ctx, pk, skPrefix, token, s.config.ScanPageSize)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		token = next
		if token == nil {
			return items, nil
		}
	}
}

func mapPage[T any](items []map[string]types.AttributeValue, token *Token, conv func(map[string]types.AttributeValue) (T, error)) (*Page[T], error) {
	page := &Page[T]{Token: token}
	for _, item := range items {
		v, err := conv(item)
		if err != nil {
			return nil, err
		}
		page.Results = append(page.Results, v)
	}
	return page, nil
}
