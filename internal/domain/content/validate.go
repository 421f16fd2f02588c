package content

import (
	"fmt"
	"strings"
)

// ValidationError is a schema failure on one field of a unified item. The
// ingestion runner counts these against the error budget.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed on %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks an item against the unified schema. It returns the first
// violation found, walking fields in declaration order.
func Validate(item *Item) error {
	if item == nil {
		return invalid("item", "item is nil")
	}
	if strings.TrimSpace(item.ID) == "" {
		return invalid("id", "id is required")
	}
	if !item.Domain.Valid() {
		return invalid("domain", "unknown domain %q", item.Domain)
	}
	if !strings.HasPrefix(item.ID, item.Source+":") {
		return invalid("id", "id %q is not prefixed with source %q", item.ID, item.Source)
	}
	if strings.TrimSpace(item.Title) == "" {
		return invalid("title", "title is required")
	}
	if len(item.Topics) == 0 {
		return invalid("topics", "at least one topic is required")
	}
	for i, topic := range item.Topics {
		if strings.TrimSpace(topic) == "" {
			return invalid(fmt.Sprintf("topics[%d]", i), "topic must be non-empty")
		}
	}
	if strings.TrimSpace(item.Source) == "" {
		return invalid("source", "source is required")
	}
	if strings.TrimSpace(item.SourceItemID) == "" {
		return invalid("source_item_id", "source item id is required")
	}
	if item.ReputationScore != nil {
		if *item.ReputationScore < 0 || *item.ReputationScore > 100 {
			return invalid("reputation_score", "must be within [0,100], got %v", *item.ReputationScore)
		}
	}
	for i, a := range item.Actions {
		if !a.Valid() {
			return invalid(fmt.Sprintf("actions[%d]", i), "unknown action %q", a)
		}
	}
	if len(item.Metadata) > 0 {
		md, err := DecodeMetadata(item.Metadata)
		if err != nil {
			return invalid("metadata", "%v", err)
		}
		if md.MetadataDomain() != item.Domain {
			return invalid("metadata.domain", "metadata domain %q does not match item domain %q",
				md.MetadataDomain(), item.Domain)
		}
	}
	return nil
}
