package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Token is an opaque continuation cursor. It carries the physical key of the
// last item examined on the index that produced it, and must only be replayed
// against a query on that same index.
type Token struct {
	attrs map[string]string
}

// NewToken builds a Token from a query's last-evaluated key. Returns nil when
// the key map is empty, signaling no more results.
func NewToken(lastEvaluatedKey map[string]types.AttributeValue) *Token {
	if len(lastEvaluatedKey) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(lastEvaluatedKey))
	for name, value := range lastEvaluatedKey {
		if s, ok := value.(*types.AttributeValueMemberS); ok {
			attrs[name] = s.Value
		}
	}
	return &Token{attrs: attrs}
}

// StartKey rebuilds the exclusive-start-key map. A nil token means start of
// the result set.
func (t *Token) StartKey() map[string]types.AttributeValue {
	if t == nil {
		return nil
	}
	key := make(map[string]types.AttributeValue, len(t.attrs))
	for name, value := range t.attrs {
		key[name] = &types.AttributeValueMemberS{Value: value}
	}
	return key
}

// attr returns a single key attribute value, or "" when absent.
func (t *Token) attr(name string) string {
	if t == nil {
		return ""
	}
	return t.attrs[name]
}

// Encode serializes the token to its opaque wire form.
func (t *Token) Encode() string {
	if t == nil {
		return ""
	}
	raw, _ := json.Marshal(t.attrs)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeToken reconstructs a Token from its wire form. An empty string
// decodes to a nil token.
func DecodeToken(s string) (*Token, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	var attrs map[string]string
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &Token{attrs: attrs}, nil
}

// Page is one page of results plus the continuation token for the next page.
// A nil Token means no more pages.
type Page[T any] struct {
	Results []T
	Token   *Token
}
