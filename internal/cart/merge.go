package cart

// MergeLines 将访客购物车按数量相加合并进服务端购物车
func MergeLines(server, guest []Line) []Line {
	merged := normalizeLines(server)
	index := make(map[uint64]int, len(merged))
	for i, line := range merged {
		index[line.ProductID] = i
	}
	for _, line := range normalizeLines(guest) {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}
