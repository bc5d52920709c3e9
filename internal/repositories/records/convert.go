package records

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

func toInt64(v any) (int64, error) {
	switch value := v.(type) {
	case int64:
		return value, nil
	case int32:
		return int64(value), nil
	case int:
		return int64(value), nil
	case []byte:
		return strconv.ParseInt(string(value), 10, 64)
	case string:
		return strconv.ParseInt(value, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

func toUUID(v any) (uuid.UUID, error) {
	switch value := v.(type) {
	case string:
		return uuid.Parse(value)
	case []byte:
		if len(value) == 16 {
			return uuid.FromBytes(value)
		}
		return uuid.ParseBytes(value)
	case [16]byte:
		return uuid.UUID(value), nil
	default:
		return uuid.Nil, fmt.Errorf("unexpected %T", v)
	}
}
