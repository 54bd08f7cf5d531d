package exchange

import "strconv"

// ResponseError extracts a rejection message from an /exchange response.
// The exchange answers HTTP 200 with {"status":"err","response":"..."} on
// business failures, so a nil error from PlaceOrder is not enough.
func ResponseError(resp map[string]any) (string, bool) {
	if resp == nil {
		return "", false
	}
	if status, ok := resp["status"].(string); ok && status != "ok" {
		if msg, ok := resp["response"].(string); ok && msg != "" {
			return msg, true
		}
		return status, true
	}
	// Per-order statuses can carry an error even when the envelope is ok.
	if msg := orderStatusError(resp); msg != "" {
		return msg, true
	}
	return "", false
}

func orderStatusError(resp map[string]any) string {
	response, ok := resp["response"].(map[string]any)
	if !ok {
		return ""
	}
	data, ok := response["data"].(map[string]any)
	if !ok {
		return ""
	}
	statuses, ok := data["statuses"].([]any)
	if !ok {
		return ""
	}
	for _, item := range statuses {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if msg, ok := entry["error"].(string); ok && msg != "" {
			return msg
		}
	}
	return ""
}

// OrderIDFromResponse digs the first order id out of an /exchange
// response, wherever the exchange chose to nest it.
func OrderIDFromResponse(resp map[string]any) string {
	if resp == nil {
		return ""
	}
	return orderIDFromAny(resp)
}

func stringFromAny(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

func orderIDFromAny(v any) string {
	switch val := v.(type) {
	case map[string]any:
		for _, key := range []string{"orderId", "orderID", "oid", "id"} {
			if id := stringFromAny(val[key]); id != "" {
				return id
			}
		}
		for _, nested := range val {
			if id := orderIDFromAny(nested); id != "" {
				return id
			}
		}
	case []any:
		for _, nested := range val {
			if id := orderIDFromAny(nested); id != "" {
				return id
			}
		}
	}
	return ""
}
