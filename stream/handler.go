// Package stream processes content-object events from the blob store,
// keeping document content metadata in sync with the stored bytes.
package stream

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/quireio/quire/store"
)

// DocumentEvent describes a document affected by a content-object event.
type DocumentEvent struct {
	SiteID     string
	DocumentID string
	S3Bucket   string
	S3Key      string
	Type       string
}

// DocumentEvent types.
const (
	EventTypeCreate = "create"
	EventTypeDelete = "delete"
)

// Handler applies content-object events to the document store.
type Handler struct {
	store  *store.DocumentStore
	logger *slog.Logger
}

// NewHandler creates a new event handler.
func NewHandler(s *store.DocumentStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  s,
		logger: logger,
	}
}

// HandleS3Event processes object created/removed notifications. Created
// objects update the matching document's content metadata (content length
// and checksum); removed objects delete the document's metadata. This
// function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleS3Event(ctx context.Context, event events.S3Event) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventName", record.EventName,
				"s3key", record.S3.Object.Key,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single object notification.
func (h *Handler) processRecord(ctx context.Context, record events.S3EventRecord) error {
	key, err := url.QueryUnescape(record.S3.Object.Key)
	if err != nil {
		return err
	}

	ev := NewDocumentEvent(key, record.S3.Bucket.Name, record.EventName)
	if ev.Type == "" {
		h.logger.Debug("ignoring event", "eventName", record.EventName, "s3key", key)
		return nil
	}

	switch ev.Type {
	case EventTypeCreate:
		return h.objectCreated(ctx, ev, record.S3.Object.Size, record.S3.Object.ETag)
	case EventTypeDelete:
		h.logger.Info("deleting document",
			"siteId", ev.SiteID,
			"documentId", ev.DocumentID,
		)
		return h.store.DeleteDocument(ctx, ev.SiteID, ev.DocumentID)
	}
	return nil
}

func (h *Handler) objectCreated(ctx context.Context, ev DocumentEvent, size int64, etag string) error {
	doc, err := h.store.FindDocument(ctx, ev.SiteID, ev.DocumentID, false)
	if err != nil {
		return err
	}

	if doc == nil {
		doc = &store.Document{
			DocumentID:   ev.DocumentID,
			InsertedDate: time.Now(),
		}
	}

	doc.ContentLength = &size
	doc.Checksum = etag

	h.logger.Info("updating document content metadata",
		"siteId", ev.SiteID,
		"documentId", ev.DocumentID,
		"contentLength", size,
	)

	return h.store.SaveDocument(ctx, ev.SiteID, doc, nil)
}

// NewDocumentEvent builds a DocumentEvent from an object key, bucket, and
// notification name. Unrecognized notification names produce an empty Type.
func NewDocumentEvent(objectKey, bucket, eventName string) DocumentEvent {
	siteID, documentID := ParseObjectKey(objectKey)

	ev := DocumentEvent{
		SiteID:     siteID,
		DocumentID: documentID,
		S3Bucket:   bucket,
		S3Key:      objectKey,
	}

	switch {
	case strings.HasPrefix(eventName, "ObjectCreated"):
		ev.Type = EventTypeCreate
	case strings.HasPrefix(eventName, "ObjectRemoved"):
		ev.Type = EventTypeDelete
	}

	return ev
}

// ParseObjectKey splits an object key of the form "<siteId>/<documentId>".
// Keys without a site prefix belong to the default tenant.
func ParseObjectKey(key string) (siteID, documentID string) {
	if i := strings.Index(key, "/"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}
