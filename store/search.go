package store

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/quireio/quire/internal/sitekey"
)

// searchRange is one date-index segment: equality on a day-bucket partition
// key plus a sort-key range. An empty skMax means no upper bound.
type searchRange struct {
	pk    string
	skMin string
	skMax string
}

// FindDocumentsByDate returns top-level documents inserted within the 24
// hours starting at date.
//
// Date buckets on the time index are UTC-day-aligned but the query window is
// instant-aligned, so a window that is not aligned to UTC midnight spans two
// buckets. The scan runs the buckets in order, resuming from the token's
// sort key in whichever bucket the previous page ended; when a full page is
// returned, a one-row lookahead decides whether the outgoing token is
// forwarded or suppressed.
func (s *DocumentStore) FindDocumentsByDate(ctx context.Context, siteID string, date time.Time, token *Token, limit int32) (*Page[Document], error) {
	ranges := generateSearchCriteria(siteID, date, token)

	results, err := s.findBySearchRanges(ctx, siteID, ranges, token, limit)
	if err != nil {
		return nil, err
	}

	// A full page may still be the last one. Probe one row past it so a
	// dead-end token is never handed back.
	if int32(len(results.Results)) == limit && results.Token != nil {
		next := results.Token
		ranges = generateSearchCriteria(siteID, date, next)
		lookahead, err := s.findBySearchRanges(ctx, siteID, ranges, next, 1)
		if err != nil {
			return nil, err
		}
		if len(lookahead.Results) == 0 {
			results.Token = nil
		}
	}

	return results, nil
}

// findBySearchRanges runs the segments in order, accumulating results until
// the quota is met. The token of the last segment queried becomes the page's
// outgoing token; segments after the one that fills the quota are not
// evaluated.
func (s *DocumentStore) findBySearchRanges(ctx context.Context, siteID string, ranges []searchRange, token *Token, limit int32) (*Page[Document], error) {
	remaining := limit
	qtoken := token

	page := &Page[Document]{}

	for _, r := range ranges {
		results, err := s.queryDateIndex(ctx, siteID, r, qtoken, remaining)
		if err != nil {
			return nil, err
		}

		page.Results = append(page.Results, results.Results...)
		page.Token = results.Token
		remaining -= int32(len(results.Results))

		if remaining < 1 {
			break
		}

		// Only the first segment resumes from the incoming token.
		qtoken = nil
	}

	return page, nil
}

// generateSearchCriteria computes the day-bucket segments for the window
// [date, date+1day), resuming from token when present.
func generateSearchCriteria(siteID string, date time.Time, token *Token) []searchRange {
	startDate := date.UTC()
	endDate := startDate.AddDate(0, 0, 1)

	bucket1 := startDate.Format(dateKeyFormat)
	bucket2 := endDate.Format(dateKeyFormat)

	crossedIntoNextBucket := isNextDayPagination(siteID, bucket1, token)

	var ranges []searchRange

	if !crossedIntoNextBucket {
		skMin := formatTimestamp(startDate)
		if token != nil {
			skMin = token.attr(attrGSI1SK)
		}
		ranges = append(ranges, searchRange{pk: bucket1, skMin: skMin})
	}

	if bucket1 != bucket2 {
		dayStart := time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, time.UTC)
		skMin := formatTimestamp(dayStart)
		skMax := formatTimestamp(endDate)

		if token != nil && crossedIntoNextBucket {
			ranges = append(ranges, searchRange{pk: bucket2, skMin: token.attr(attrGSI1SK), skMax: skMax})
		} else if skMin != skMax {
			ranges = append(ranges, searchRange{pk: bucket2, skMin: skMin, skMax: skMax})
		}
	}

	return ranges
}

// isNextDayPagination reports whether the continuation key belongs to a
// later day bucket than dateKey, meaning the previous page already crossed
// the day boundary.
func isNextDayPagination(siteID, dateKey string, token *Token) bool {
	if token == nil {
		return false
	}
	return dateKey != sitekey.Reset(siteID, token.attr(attrGSI1PK))
}

// queryDateIndex runs one segment on the date index. Matched rows carry only
// document ids; full records are resolved through the chunked transactional
// multi-get.
func (s *DocumentStore) queryDateIndex(ctx context.Context, siteID string, r searchRange, token *Token, limit int32) (*Page[Document], error) {
	expr := attrGSI1PK + " = :pk"
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: sitekey.Create(siteID, r.pk)},
	}

	if r.skMax != "" {
		expr += " and " + attrGSI1SK + " between :sk1 and :sk2"
		values[":sk1"] = &types.AttributeValueMemberS{Value: r.skMin}
		values[":sk2"] = &types.AttributeValueMemberS{Value: r.skMax}
	} else if r.skMin != "" {
		expr += " and " + attrGSI1SK + " >= :sk"
		values[":sk"] = &types.AttributeValueMemberS{Value: r.skMin}
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.TableName),
		IndexName:                 aws.String(s.config.DateIndex),
		KeyConditionExpression:    aws.String(expr),
		ExpressionAttributeValues: values,
		Limit:                     aws.Int32(limit),
		ExclusiveStartKey:         token.StartKey(),
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(out.Items))
	for _, item := range out.Items {
		if v, ok := item["documentId"].(*types.AttributeValueMemberS); ok {
			ids = append(ids, v.Value)
		}
	}

	page := &Page[Document]{Token: NewToken(out.LastEvaluatedKey)}
	if len(ids) > 0 {
		docs, err := s.FindDocuments(ctx, siteID, ids)
		if err != nil {
			return nil, err
		}
		page.Results = docs
	}

	return page, nil
}
