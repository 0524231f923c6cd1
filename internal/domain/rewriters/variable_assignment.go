package rewriters

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

var declareIntPattern = regexp.MustCompile(`declare\s+-i\s+([A-Za-z_][A-Za-z0-9_]*)`)

// VariableAssignment rewrites += appends into explicit concatenation or
// arithmetic and strips declare -i down to plain assignments. Variables
// declared integer append arithmetically; everything else appends as text.
type VariableAssignment struct {
	baseRewriter
}

// NewVariableAssignment constructs the assignment rewriter.
func NewVariableAssignment() *VariableAssignment {
	return &VariableAssignment{newBase()}
}

func (r *VariableAssignment) Name() string { return "variable-assignment" }

func (r *VariableAssignment) Features() []m.Feature {
	return []m.Feature{m.FeatureVariableAssignment}
}

func (r *VariableAssignment) NodeKinds() []string {
	return []string{"variable_assignment", "declaration_command"}
}

func (r *VariableAssignment) Rewrite(src []byte, rc *m.RewriteContext) ([]byte, error) {
	tree, err := r.parseRoot(r.Name(), src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	integerVars := map[string]bool{}
	for _, groups := range declareIntPattern.FindAllStringSubmatch(string(src), -1) {
		integerVars[groups[1]] = true
	}

	var patches []m.Patch

	visit(tree.RootNode(), func(n *sitter.Node) {
		switch n.Type() {
		case "variable_assignment":
			if patch, ok := appendPatch(n, src, integerVars); ok {
				patches = append(patches, patch)
			}
		case "declaration_command":
			if patch, ok := declarePatch(n, src); ok {
				patches = append(patches, patch)
			}
		}
	})

	if len(patches) == 0 {
		return src, nil
	}

	out, err := Apply(src, patches)
	if err != nil {
		return nil, &TransformError{Rewriter: r.Name(), Reason: "patch conflict", Err: err}
	}

	rc.TransformedFeatures.Add(m.FeatureVariableAssignment)

	return out, nil
}

// appendPatch converts one name+=value assignment. Array appends are another
// rewriter's concern and plain = assignments are already portable.
func appendPatch(n *sitter.Node, src []byte, integerVars map[string]bool) (m.Patch, bool) {
	var name string

	valueIdx := -1

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)

		switch child.Type() {
		case "variable_name":
			name = child.Content(src)
		case "+=":
			valueIdx = i + 1
		}
	}

	if name == "" || valueIdx < 0 || valueIdx >= int(n.ChildCount()) {
		return m.Patch{}, false
	}

	valueNode := n.Child(valueIdx)
	if valueNode.Type() == "array" {
		return m.Patch{}, false
	}

	value := valueNode.Content(src)

	var replacement string

	switch {
	case integerVars[name]:
		replacement = fmt.Sprintf("%s=$((%s + %s))", name, name, value)
	case valueNode.Type() == "string" || valueNode.Type() == "raw_string" || valueNode.Type() == "number":
		replacement = fmt.Sprintf("%s=${%s}%s", name, name, value)
	default:
		replacement = fmt.Sprintf("%s=${%s}\"%s\"", name, name, value)
	}

	return m.Patch{
		Start:       int(n.StartByte()),
		End:         int(n.EndByte()),
		Replacement: replacement,
	}, true
}

// declarePatch rewrites declare -i declarations. Assigned names keep their
// value; bare names get an explicit zero so later arithmetic sees a number.
func declarePatch(n *sitter.Node, src []byte) (m.Patch, bool) {
	if n.ChildCount() == 0 || n.Child(0).Content(src) != "declare" {
		return m.Patch{}, false
	}

	integer := false

	var parts []string

	for i := 1; i < int(n.ChildCount()); i++ {
		child := n.Child(i)

		switch child.Type() {
		case "word":
			if child.Content(src) == "-i" {
				integer = true
			}
		case "variable_assignment":
			parts = append(parts, child.Content(src))
		case "variable_name":
			parts = append(parts, child.Content(src)+"=0")
		}
	}

	if !integer || len(parts) == 0 {
		return m.Patch{}, false
	}

	return m.Patch{
		Start:       int(n.StartByte()),
		End:         int(n.EndByte()),
		Replacement: strings.Join(parts, "\n"),
	}, true
}
