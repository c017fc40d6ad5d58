package controls

import (
	"regexp"
	"slices"
)

// Node is one rendered element of the player tree.
type Node struct {
	Classes  []string          `json:"classes"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

func (n Node) HasClass(class string) bool {
	return slices.Contains(n.Classes, class)
}

func (n Node) Attr(name string) string {
	return n.Attrs[name]
}

// View is the full rendered tree for one player.
type View struct {
	Root Node `json:"root"`
}

var selectorRe = regexp.MustCompile(`^\.([A-Za-z0-9_-]+)(?:\[([A-Za-z0-9_-]+)="([^"]*)"\])?$`)

// Find returns the first node, depth first, matching a ".class" or
// ".class[attr=\"value\"]" selector.
func (v View) Find(selector string) (Node, bool) {
	all := v.FindAll(selector)
	if len(all) == 0 {
		return Node{}, false
	}
	return all[0], true
}

func (v View) FindAll(selector string) []Node {
	m := selectorRe.FindStringSubmatch(selector)
	if m == nil {
		return nil
	}
	class, attr, value := m[1], m[2], m[3]

	var found []Node
	var walk func(n Node)
	walk = func(n Node) {
		if n.HasClass(class) && (attr == "" || n.Attrs[attr] == value) {
			found = append(found, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(v.Root)

	return found
}

// Container is a read-only handle on the latest rendered view.
type Container interface {
	View() View
}

type staticContainer View

func (c staticContainer) View() View {
	return View(c)
}

// Static wraps a fixed view.
func Static(v View) Container {
	return staticContainer(v)
}
