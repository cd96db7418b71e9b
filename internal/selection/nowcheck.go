package selection

// RequiresConversion reports whether the selection uses now() and must be
// rewritten with Convert before it is pushed to a remote index.
func RequiresConversion(n Node) bool {
	found := false
	Walk(n, func(n Node) bool {
		if _, ok := n.(*Now); ok {
			found = true
		}
		return !found
	})
	return found
}
