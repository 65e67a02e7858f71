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

// SavePreset writes a preset and its tags. The preset row, with its
// (type, name) index attributes, and each tag row are separate writes.
func (s *DocumentStore) SavePreset(ctx context.Context, siteID string, preset *Preset, tags []PresetTag) (*Preset, error) {
	for _, tag := range tags {
		if strings.Contains(tag.Key, TagDelimiter) {
			return nil, ErrTagKeyInvalid
		}
	}

	now := time.Now()

	if preset != nil {
		if preset.ID == "" {
			preset.ID = uuid.NewString()
		}
		if preset.InsertedDate.IsZero() {
			preset.InsertedDate = now
		}

		item, err := attributevalue.MarshalMap(newPresetRecord(siteID, preset))
		if err != nil {
			return nil, fmt.Errorf("marshal preset: %w", err)
		}
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.config.TableName),
			Item:      item,
		})
		if err != nil {
			return nil, err
		}
	}

	for _, tag := range tags {
		if tag.InsertedDate.IsZero() {
			tag.InsertedDate = now
		}
		if preset != nil {
			tag.PresetID = preset.ID
		}

		item, err := attributevalue.MarshalMap(newPresetTagRecord(siteID, tag.PresetID, tag))
		if err != nil {
			return nil, fmt.Errorf("marshal preset tag %s: %w", tag.Key, err)
		}
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.config.TableName),
			Item:      item,
		})
		if err != nil {
			return nil, err
		}
	}

	return preset, nil
}

// FindPreset looks up a preset by id. Returns (nil, nil) when absent.
func (s *DocumentStore) FindPreset(ctx context.Context, siteID, presetID string) (*Preset, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       keysPreset(siteID, presetID).attrs(),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	preset, err := presetFromItem(out.Item)
	if err != nil {
		return nil, err
	}
	return &preset, nil
}

// FindPresets lists presets of a type on the (type, name) index, ordered by
// name. A non-empty name narrows the page to presets with exactly that name.
func (s *DocumentStore) FindPresets(ctx context.Context, siteID, presetType, name string, token *Token, limit int32) (*Page[Preset], error) {
	expr := attrGSI2PK + " = :pk"
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: presetTypePK(siteID, presetType)},
	}

	if name != "" {
		expr += " and begins_with(" + attrGSI2SK + ", :sk)"
		values[":sk"] = &types.AttributeValueMemberS{Value: name + TagDelimiter}
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.TableName),
		IndexName:                 aws.String(s.config.PresetIndex),
		KeyConditionExpression:    aws.String(expr),
		ExpressionAttributeValues: values,
		Limit:                     aws.Int32(limit),
		ExclusiveStartKey:         token.StartKey(),
	})
	if err != nil {
		return nil, err
	}

	return mapPage(out.Items, NewToken(out.LastEvaluatedKey), presetFromItem)
}

// DeletePreset removes a preset and its tags: tag rows first, paged, then
// the preset's own row. Not atomic.
func (s *DocumentStore) DeletePreset(ctx context.Context, siteID, presetID string) error {
	if err := s.DeletePresetTags(ctx, siteID, presetID); err != nil {
		return err
	}
	return s.deleteKey(ctx, keysPreset(siteID, presetID))
}

// DeletePresets removes every preset of a type, paging until no
// continuation token is returned.
func (s *DocumentStore) DeletePresets(ctx context.Context, siteID, presetType string) error {
	var token *Token
	for {
		page, err := s.FindPresets(ctx, siteID, presetType, "", token, s.config.ScanPageSize)
		if err != nil {
			return err
		}
		for _, preset := range page.Results {
			if err := s.DeletePreset(ctx, siteID, preset.ID); err != nil {
				return err
			}
		}
		token = page.Token
		if token == nil {
			return nil
		}
	}
}

// FindPresetTag looks up a single preset tag. Returns (nil, nil) when
// absent.
func (s *DocumentStore) FindPresetTag(ctx context.Context, siteID, presetID, tagKey string) (*PresetTag, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       keysPresetTag(siteID, presetID, tagKey).attrs(),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	tag, err := presetTagFromItem(out.Item)
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// FindPresetTags returns one page of a preset's tags, ordered by key.
func (s *DocumentStore) FindPresetTags(ctx context.Context, siteID, presetID string, token *Token, limit int32) (*Page[PresetTag], error) {
	key := keysPresetTag(siteID, presetID, "")
	items, next, err := s.queryPage(ctx, key.pk, key.sk, token, limit)
	if err != nil {
		return nil, err
	}
	return mapPage(items, next, presetTagFromItem)
}

// DeletePresetTag deletes a single preset tag row.
func (s *DocumentStore) DeletePresetTag(ctx context.Context, siteID, presetID, tagKey string) error {
	return s.deleteKey(ctx, keysPresetTag(siteID, presetID, tagKey))
}

// DeletePresetTags deletes all of a preset's tags, paging until no
// continuation token is returned.
func (s *DocumentStore) DeletePresetTags(ctx context.Context, siteID, presetID string) error {
	var token *Token
	for {
		page, err := s.FindPresetTags(ctx, siteID, presetID, token, s.config.ScanPageSize)
		if err != nil {
			return err
		}
		for _, tag := range page.Results {
			if err := s.DeletePresetTag(ctx, siteID, presetID, tag.Key); err != nil {
				return err
			}
		}
		token = page.Token
		if token == nil {
			return nil
		}
	}
}
