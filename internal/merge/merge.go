// Package merge combines JSON-like documents decoded into map[string]any.
//
// It is used both for the embedded page metadata blobs and for change log
// fragments that belong to the same file.
package merge

// Merge returns a new document holding target with source merged over it.
// Neither input is modified.
//
// For every key of source:
//   - arrays concatenate onto an array in target, or replace a non-array
//   - objects merge recursively into an object in target, or are deep-copied
//     over a non-object
//   - anything else (scalars, null) overwrites
//
// Keys present only in target are kept.
func Merge(target, source map[string]any) map[string]any {
	result := make(map[string]any, len(target)+len(source))
	for k, v := range target {
		result[k] = v
	}

	for k, sv := range source {
		switch s := sv.(type) {
		case []any:
			if t, ok := result[k].([]any); ok {
				joined := make([]any, 0, len(t)+len(s))
				joined = append(joined, t...)
				joined = append(joined, s...)
				result[k] = joined
			} else {
				result[k] = append(make([]any, 0, len(s)), s...)
			}
		case map[string]any:
			if t, ok := result[k].(map[string]any); ok {
				result[k] = Merge(t, s)
			} else {
				result[k] = Merge(map[string]any{}, s)
			}
		default:
			result[k] = sv
		}
	}

	return result
}

// All folds docs left to right into an empty document.
func All(docs ...map[string]any) map[string]any {
	result := map[string]any{}
	for _, d := range docs {
		result = Merge(result, d)
	}
	return result
}
