package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
)

// JSONMap stores an opaque JSON object in a single column. It works on both
// the postgres and sqlite backends.
type JSONMap map[string]interface{}

// GormDataType names the column type for gorm's schema parser, which cannot
// infer it from Value() because a nil map yields a nil driver.Value.
func (JSONMap) GormDataType() string {
	return "text"
}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal JSONMap")
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("unsupported JSONMap source type %T", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, m), "unmarshal JSONMap")
}
