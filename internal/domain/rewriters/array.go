package rewriters

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

var (
	subscriptExpansion = regexp.MustCompile(`^\$\{(\w+)\[(\d+)\]\}$`)
	lengthExpansion    = regexp.MustCompile(`^\$\{#(\w+)\[[@*]\]\}$`)
	wholeExpansion     = regexp.MustCompile(`^\$\{(\w+)\[[@*]\]\}$`)
)

// Array rewrites indexed Bash arrays into plain scalars: a declaration
// `arr=(x y)` becomes `arr_0=x`, `arr_1=y` plus `arr_len=2`; numeric
// subscripts and length/whole expansions are rewritten against the scalars.
// Knowledge about declared arrays travels through the RewriteContext so
// expansions in later chain passes stay consistent.
type Array struct {
	baseRewriter
}

// NewArray constructs the array rewriter.
func NewArray() *Array {
	return &Array{newBase()}
}

func (r *Array) Name() string { return "array" }

func (r *Array) Features() []m.Feature {
	return []m.Feature{m.FeatureArray}
}

func (r *Array) NodeKinds() []string {
	return []string{"variable_assignment", "subscript", "expansion"}
}

func (r *Array) Rewrite(src []byte, rc *m.RewriteContext) ([]byte, error) {
	tree, err := r.parseRoot(r.Name(), src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()

	// First pass: learn which names are arrays before touching expansions.
	r.identifyArrays(root, src, rc)

	var patches []m.Patch

	visit(root, func(n *sitter.Node) {
		switch n.Type() {
		case "variable_assignment":
			patches = append(patches, r.rewriteAssignment(n, src, rc)...)
		case "expansion":
			patches = append(patches, r.rewriteExpansion(n, src, rc)...)
		}
	})

	if len(patches) == 0 {
		return src, nil
	}

	out, err := Apply(src, patches)
	if err != nil {
		return nil, &TransformError{Rewriter: r.Name(), Reason: "patch conflict", Err: err}
	}

	rc.TransformedFeatures.Add(m.FeatureArray)

	return out, nil
}

func (r *Array) identifyArrays(root *sitter.Node, src []byte, rc *m.RewriteContext) {
	visit(root, func(n *sitter.Node) {
		if n.Type() != "variable_assignment" {
			return
		}

		name := n.ChildByFieldName("name")
		value := n.ChildByFieldName("value")

		if name == nil {
			return
		}

		if value != nil && value.Type() == "array" {
			rc.Arrays[name.Content(src)] = m.ArrayInfo{Length: int(value.NamedChildCount())}
			return
		}

		// Subscript assignment (arr[0]=x) implies arr is an array of
		// unknown length.
		if name.Type() == "subscript" {
			if arrName := name.ChildByFieldName("name"); arrName != nil {
				key := arrName.Content(src)
				if _, ok := rc.Arrays[key]; !ok {
					rc.Arrays[key] = m.ArrayInfo{Length: -1}
				}
			}
		}
	})
}

func (r *Array) rewriteAssignment(n *sitter.Node, src []byte, rc *m.RewriteContext) []m.Patch {
	name := n.ChildByFieldName("name")
	value := n.ChildByFieldName("value")

	if name == nil {
		return nil
	}

	if value != nil && value.Type() == "array" {
		return r.rewriteDeclaration(n, name.Content(src), value, src)
	}

	if name.Type() == "subscript" {
		return r.rewriteSubscriptAssignment(n, name, value, src)
	}

	return nil
}

// rewriteDeclaration turns arr=(x y z) into one scalar assignment per
// element plus a length scalar.
func (r *Array) rewriteDeclaration(n *sitter.Node, arrName string, value *sitter.Node, src []byte) []m.Patch {
	count := int(value.NamedChildCount())

	var b strings.Builder

	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "%s_%d=%s\n", arrName, i, value.NamedChild(i).Content(src))
	}

	fmt.Fprintf(&b, "%s_len=%d", arrName, count)

	return []m.Patch{{
		Start:       int(n.StartByte()),
		End:         int(n.EndByte()),
		Replacement: b.String(),
	}}
}

func (r *Array) rewriteSubscriptAssignment(n, name, value *sitter.Node, src []byte) []m.Patch {
	arrName := name.ChildByFieldName("name")
	index := name.ChildByFieldName("index")

	if arrName == nil || index == nil || !isNumeric(index.Content(src)) {
		return nil
	}

	valueText := ""
	if value != nil {
		valueText = value.Content(src)
	}

	return []m.Patch{{
		Start:       int(n.StartByte()),
		End:         int(n.EndByte()),
		Replacement: fmt.Sprintf("%s_%s=%s", arrName.Content(src), index.Content(src), valueText),
	}}
}

func (r *Array) rewriteExpansion(n *sitter.Node, src []byte, rc *m.RewriteContext) []m.Patch {
	text := n.Content(src)

	if groups := subscriptExpansion.FindStringSubmatch(text); groups != nil {
		if _, ok := rc.Arrays[groups[1]]; !ok {
			return nil
		}

		return []m.Patch{{
			Start:       int(n.StartByte()),
			End:         int(n.EndByte()),
			Replacement: fmt.Sprintf("${%s_%s}", groups[1], groups[2]),
		}}
	}

	if groups := lengthExpansion.FindStringSubmatch(text); groups != nil {
		if _, ok := rc.Arrays[groups[1]]; !ok {
			return nil
		}

		return []m.Patch{{
			Start:       int(n.StartByte()),
			End:         int(n.EndByte()),
			Replacement: fmt.Sprintf("${%s_len}", groups[1]),
		}}
	}

	if groups := wholeExpansion.FindStringSubmatch(text); groups != nil {
		info, ok := rc.Arrays[groups[1]]
		if !ok || info.Length < 0 {
			return nil
		}

		target := n

		// "${arr[@]}" must expand to one word per element, so the patch has
		// to swallow the enclosing quotes. Skip expansions embedded in a
		// larger string; splitting those would change quoting semantics.
		if parent := n.Parent(); parent != nil && parent.Type() == "string" {
			if parent.Content(src) != `"`+text+`"` {
				return nil
			}

			target = parent
		}

		return []m.Patch{{
			Start:       int(target.StartByte()),
			End:         int(target.EndByte()),
			Replacement: expandWhole(groups[1], info.Length, true),
		}}
	}

	return nil
}

func expandWhole(arrName string, length int, quoted bool) string {
	parts := make([]string, 0, length)

	for i := 0; i < length; i++ {
		ref := fmt.Sprintf("$%s_%d", arrName, i)
		if quoted {
			ref = `"` + ref + `"`
		}

		parts = append(parts, ref)
	}

	return strings.Join(parts, " ")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
