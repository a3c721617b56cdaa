package planparser

import "sort"

// sortItems 按天稳定排序，同一天保持抽取顺序
func sortItems(items []ParsedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DayIndex < items[j].DayIndex
	})
}
