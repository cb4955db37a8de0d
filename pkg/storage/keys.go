package storage

import (
	"fmt"
)

func itemKey(itemCode string, crated bool) string {
	if itemCode == "" {
		return ""
	}
	return fmt.Sprintf("%s|%d", itemCode, boolToInt(crated))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
