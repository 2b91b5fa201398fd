package primitive

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// Format renders a scalar value as wire text. The kind must be the one
// returned by FromReflectType for the value's type; formatting never escapes
// anything, that is the format writer's concern.
func Format(v reflect.Value, kind KindEnum) string {
	switch kind {
	default:
		// Unclassifiable values fall back to their fmt representation.
		return fmt.Sprint(v.Interface())

	case KindNull:
		return ""

	case KindBool:
		return strconv.FormatBool(v.Bool())

	case KindInt, KindInt8, KindInt16, KindInt32, KindInt64:
		return strconv.FormatInt(v.Int(), 10)

	case KindUint, KindUint8, KindUint16, KindUint32, KindUint64:
		return strconv.FormatUint(v.Uint(), 10)

	case KindFloat32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)

	case KindFloat64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)

	case KindString:
		return v.String()

	case KindBytes:
		return base64.StdEncoding.EncodeToString(v.Bytes())

	case KindTime:
		return v.Interface().(time.Time).Format(time.RFC3339Nano)

	case KindDuration:
		return time.Duration(v.Int()).String()
	}
}

// FormatAny is a convenience wrapper around Format for plain values.
func FormatAny(v any) string {
	if v == nil {
		return ""
	}

	rv := reflect.ValueOf(v)

	return Format(rv, FromReflectType(rv.Type()))
}
