package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StringList is a JSON-encoded list of strings stored in a text column.
type StringList []string

// Scan implements the sql.Scanner interface for reading from database
func (l *StringList) Scan(value interface{}) error {
	data, err := columnBytes(value)
	if err != nil {
		return fmt.Errorf("StringList: %w", err)
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	out := StringList{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("StringList: %w", err)
	}
	*l = out
	return nil
}

// Value implements the driver.Valuer interface for writing to database
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Metadata is a free-form JSON object, used for activity payloads.
type Metadata map[string]any

func (m *Metadata) Scan(value interface{}) error {
	data, err := columnBytes(value)
	if err != nil {
		return fmt.Errorf("Metadata: %w", err)
	}
	if len(data) == 0 || string(data) == "null" {
		*m = nil
		return nil
	}
	out := Metadata{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("Metadata: %w", err)
	}
	*m = out
	return nil
}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func columnBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("expected string or []byte, got %T", value)
	}
}

// Base carries the opaque string identifier shared by every entity.
type Base struct {
	ID string `gorm:"type:varchar(64);primaryKey" json:"id"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
