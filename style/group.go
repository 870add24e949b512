package style

// GroupByLayout partitions layers into runs that can share one bucket. Groups
// are ordered by the first appearance of their key in the layer stack and the
// first member of each group is its leader.
func GroupByLayout(layers []*Layer) [][]*Layer {
	index := make(map[string]int)
	var groups [][]*Layer

	for _, layer := range layers {
		key := layer.LayoutKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], layer)
	}

	return groups
}

// LayerIDs returns the ids of a group in order.
func LayerIDs(group []*Layer) []string {
	ids := make([]string, len(group))
	for i, l := range group {
		ids[i] = l.ID
	}
	return ids
}
