package blocks

// ImageURL reduces a CMS image object to its url when it has a truthy one;
// any other value passes through unchanged.
func ImageURL(v any) any {
	if m, ok := v.(map[string]any); ok {
		if u, ok := m["url"]; ok && truthy(u) {
			return u
		}
	}
	return v
}

// ImageURLs applies ImageURL to each element of a list. Anything that is not
// a list becomes an empty list.
func ImageURLs(v any) any {
	items, ok := v.([]any)
	if !ok {
		return []any{}
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = ImageURL(item)
	}
	return out
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	default:
		return true
	}
}
