package storage

import (
	"strings"
)

// NormalizeItemCode strips whitespace around an item code. Codes are
// case-sensitive identifiers and are otherwise kept as given.
func NormalizeItemCode(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeHex canonicalizes a map region name: trimmed, inner runs of
// whitespace collapsed, and a trailing " Hex" suffix removed.
func NormalizeHex(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if strings.HasSuffix(strings.ToLower(s), " hex") && len(s) > 4 {
		s = s[:len(s)-4]
	}
	return s
}

// mergeScanItems folds duplicate (itemCode, crated) lines into one, summing
// quantities and keeping the highest confidence. First-seen order is kept.
func mergeScanItems(items []ScanItem) []ScanItem {
	index := make(map[string]int, len(items))
	out := make([]ScanItem, 0, len(items))
	for _, it := range items {
		it.ItemCode = NormalizeItemCode(it.ItemCode)
		key := itemKey(it.ItemCode, it.Crated)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out[i].Quantity += it.Quantity
			if it.Confidence != nil && (out[i].Confidence == nil || *it.Confidence > *out[i].Confidence) {
				out[i].Confidence = it.Confidence
			}
			continue
		}
		index[key] = len(out)
		out = append(out, it)
	}
	return out
}
