package spec

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Payload is the raw provider response kept on payment rows for audit
type Payload map[string]interface{}

func (p *Payload) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	case nil:
		*p = make(Payload)
		return nil
	default:
		return fmt.Errorf("Failed to unmarshal jsonb value: %v", value)
	}
	if len(bytes) == 0 {
		*p = make(Payload)
		return nil
	}
	return json.Unmarshal(bytes, p)
}

func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (Payload) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "sqlite":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}

// NewPayload converts any JSON-serializable value into a Payload
func NewPayload(v interface{}) (Payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	p := make(Payload)
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return p, nil
}
