package pointer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
)

// Record is the serialized form of a pointer. It carries a "type" key and only
// the fields of that variant.
type Record map[string]any

func Marshal(p Pointer) (Record, error) {
	switch v := p.(type) {
	case TextRange:
		record := Record{
			"type":       string(TypeTextRange),
			"documentId": v.Document,
			"from":       v.From,
			"to":         v.To,
		}
		if v.EditorID != "" {
			record["editorId"] = v.EditorID
		}
		return record, nil
	case ItemSection:
		return Record{
			"type":       string(TypeItemSection),
			"documentId": v.Document,
			"sectionId":  v.SectionID,
		}, nil
	case QuoteObject:
		return Record{
			"type":           string(TypeQuoteObject),
			"quoteId":        v.QuoteID,
			"entityId":       v.EntityID,
			"sourceDocument": v.SourceDocument,
			"sourceRange": map[string]any{
				"from": v.SourceRange.From,
				"to":   v.SourceRange.To,
			},
		}, nil
	case nil:
		return nil, apperr.Validation("pointer.Marshal", "pointer is nil", nil)
	default:
		return nil, apperr.Validation("pointer.Marshal", "unsupported pointer", map[string]any{"type": fmt.Sprintf("%T", p)})
	}
}

func Unmarshal(record Record) (Pointer, error) {
	tag, _ := record["type"].(string)
	switch Type(tag) {
	case TypeTextRange:
		from, err := intField(record, "from")
		if err != nil {
			return nil, err
		}
		to, err := intField(record, "to")
		if err != nil {
			return nil, err
		}
		return TextRange{
			Document: stringField(record, "documentId"),
			EditorID: stringField(record, "editorId"),
			From:     from,
			To:       to,
		}, nil
	case TypeItemSection:
		return ItemSection{
			Document:  stringField(record, "documentId"),
			SectionID: stringField(record, "sectionId"),
		}, nil
	case TypeQuoteObject:
		var sourceRange Range
		if raw, ok := record["sourceRange"]; ok && raw != nil {
			nested, ok := raw.(map[string]any)
			if !ok {
				if typed, isRecord := raw.(Record); isRecord {
					nested = typed
				} else {
					return nil, apperr.Validation("pointer.Unmarshal", "sourceRange must be an object", nil)
				}
			}
			from, err := intField(nested, "from")
			if err != nil {
				return nil, err
			}
			to, err := intField(nested, "to")
			if err != nil {
				return nil, err
			}
			sourceRange = Range{From: from, To: to}
		}
		return QuoteObject{
			QuoteID:        stringField(record, "quoteId"),
			EntityID:       stringField(record, "entityId"),
			SourceDocument: stringField(record, "sourceDocument"),
			SourceRange:    sourceRange,
		}, nil
	default:
		return nil, apperr.Validation("pointer.Unmarshal", "unknown pointer type", map[string]any{"type": tag})
	}
}

func stringField(record map[string]any, key string) string {
	value, _ := record[key].(string)
	return strings.TrimSpace(value)
}

func intField(record map[string]any, key string) (int, error) {
	switch v := record[key].(type) {
	case int:
		return v, nil
	case int64:
		if v < math.MinInt || v > math.MaxInt {
			return 0, apperr.Validation("pointer.Unmarshal", key+" is out of range", map[string]any{key: v})
		}
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, apperr.Validation("pointer.Unmarshal", key+" must be an integer", map[string]any{key: v})
		}
		if v < math.MinInt || v >= math.MaxInt {
			return 0, apperr.Validation("pointer.Unmarshal", key+" is out of range", map[string]any{key: v})
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, apperr.Validation("pointer.Unmarshal", key+" must be an integer", map[string]any{key: v.String()})
		}
		if n < math.MinInt || n > math.MaxInt {
			return 0, apperr.Validation("pointer.Unmarshal", key+" is out of range", map[string]any{key: v.String()})
		}
		return int(n), nil
	case nil:
		return 0, apperr.Validation("pointer.Unmarshal", key+" is required", nil)
	default:
		return 0, apperr.Validation("pointer.Unmarshal", key+" must be an integer", map[string]any{key: v})
	}
}

// List is a pointer slice with a JSON encoding of tagged records.
type List []Pointer

func (l List) MarshalJSON() ([]byte, error) {
	records := make([]Record, 0, len(l))
	for _, p := range l {
		record, err := Marshal(p)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return json.Marshal(records)
}

func (l *List) UnmarshalJSON(data []byte) error {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode pointers: %w", err)
	}
	out := make(List, 0, len(records))
	for _, record := range records {
		p, err := Unmarshal(record)
		if err != nil {
			return err
		}
		out = append(out, p)
	}
	*l = out
	return nil
}

// DecodeJSON parses a single pointer record.
func DecodeJSON(data []byte) (Pointer, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, apperr.Validation("pointer.DecodeJSON", "invalid pointer JSON", nil)
	}
	return Unmarshal(record)
}
