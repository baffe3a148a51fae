package domain

// Category is a single node of the store's category tree as returned by the
// categoryList query. Children nest to arbitrary depth.
type Category struct {
	ID       int64      `json:"id"`
	UID      string     `json:"uid"`
	Name     string     `json:"name"`
	URLPath  string     `json:"url_path"`
	Children []Category `json:"children"`
}

// IsLeaf reports whether the category has no child categories. Leaves are
// the unit of product scraping; parent categories are only traversed.
func (c Category) IsLeaf() bool {
	return len(c.Children) == 0
}

// Leaves flattens a category forest into its leaf categories in pre-order:
// siblings in response order, depth first. Nodes without a uid are skipped
// since they cannot be used as a products filter.
func Leaves(categories []Category) []Category {
	leaves := make([]Category, 0, len(categories))
	for _, c := range categories {
		if !c.IsLeaf() {
			leaves = append(leaves, Leaves(c.Children)...)
			continue
		}
		if c.UID != "" {
			leaves = append(leaves, c)
		}
	}
	return leaves
}
