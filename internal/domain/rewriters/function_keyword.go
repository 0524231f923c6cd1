package rewriters

import (
	sitter "github.com/smacker/go-tree-sitter"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// FunctionKeyword rewrites `function name { ... }` definitions into the
// portable `name() { ... }` form.
type FunctionKeyword struct {
	baseRewriter
}

// NewFunctionKeyword constructs the function-definition rewriter.
func NewFunctionKeyword() *FunctionKeyword {
	return &FunctionKeyword{newBase()}
}

func (r *FunctionKeyword) Name() string { return "function-keyword" }

func (r *FunctionKeyword) Features() []m.Feature {
	return []m.Feature{m.FeatureFunctionKeyword}
}

func (r *FunctionKeyword) NodeKinds() []string {
	return []string{"function_definition"}
}

func (r *FunctionKeyword) Rewrite(src []byte, rc *m.RewriteContext) ([]byte, error) {
	tree, err := r.parseRoot(r.Name(), src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var patches []m.Patch

	visit(tree.RootNode(), func(n *sitter.Node) {
		if n.Type() != "function_definition" {
			return
		}

		if n.ChildCount() == 0 || n.Child(0).Type() != "function" {
			return
		}

		name := n.ChildByFieldName("name")
		body := n.ChildByFieldName("body")

		if name == nil || body == nil {
			return
		}

		// Replace everything up to the body (keyword, name, optional parens)
		// with the POSIX definition header.
		patches = append(patches, m.Patch{
			Start:       int(n.StartByte()),
			End:         int(body.StartByte()),
			Replacement: name.Content(src) + "() ",
		})
	})

	if len(patches) == 0 {
		return src, nil
	}

	out, err := Apply(src, patches)
	if err != nil {
		return nil, &TransformError{Rewriter: r.Name(), Reason: "patch conflict", Err: err}
	}

	rc.TransformedFeatures.Add(m.FeatureFunctionKeyword)

	return out, nil
}
