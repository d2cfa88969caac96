package httpclient

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// EncodeQuery turns a payload into query parameters. The payload is first
// viewed through its JSON form, so struct tags decide the names. Arrays are
// joined with commas and null values are left out.
func EncodeQuery(payload any) (url.Values, error) {
	if v, ok := payload.(url.Values); ok {
		return v, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("query payload must be an object: %w", err)
	}

	values := url.Values{}
	for k, v := range fields {
		if v == nil {
			continue
		}
		if list, ok := v.([]any); ok {
			parts := make([]string, 0, len(list))
			for _, item := range list {
				parts = append(parts, scalar(item))
			}
			values.Set(k, strings.Join(parts, ","))
			continue
		}
		values.Set(k, scalar(v))
	}
	return values, nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		data, _ := json.Marshal(t)
		return string(data)
	}
}
