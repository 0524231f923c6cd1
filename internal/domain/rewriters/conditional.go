package rewriters

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// ConditionalExpression rewrites Bash [[ ... ]] test commands into POSIX
// [ ... ] tests. Regex matches (=~) become grep -Eq pipelines; && and ||
// inside the brackets split into separate bracketed tests.
type ConditionalExpression struct {
	baseRewriter
}

// NewConditionalExpression constructs the [[ ]] rewriter.
func NewConditionalExpression() *ConditionalExpression {
	return &ConditionalExpression{newBase()}
}

func (r *ConditionalExpression) Name() string { return "conditional-expression" }

func (r *ConditionalExpression) Features() []m.Feature {
	return []m.Feature{m.FeatureConditionalExpression}
}

func (r *ConditionalExpression) NodeKinds() []string {
	return []string{"test_command"}
}

func (r *ConditionalExpression) Rewrite(src []byte, rc *m.RewriteContext) ([]byte, error) {
	tree, err := r.parseRoot(r.Name(), src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var patches []m.Patch

	visit(tree.RootNode(), func(n *sitter.Node) {
		if n.Type() != "test_command" {
			return
		}

		text := strings.TrimSpace(n.Content(src))
		if !strings.HasPrefix(text, "[[") || !strings.HasSuffix(text, "]]") {
			return
		}

		patches = append(patches, m.Patch{
			Start:       int(n.StartByte()),
			End:         int(n.EndByte()),
			Replacement: convertTestCommand(n, src, text),
		})
	})

	if len(patches) == 0 {
		return src, nil
	}

	out, err := Apply(src, patches)
	if err != nil {
		return nil, &TransformError{Rewriter: r.Name(), Reason: "patch conflict", Err: err}
	}

	rc.TransformedFeatures.Add(m.FeatureConditionalExpression)

	return out, nil
}

// convertTestCommand turns a [[ ... ]] node into an equivalent POSIX test.
// The conversion walks the expression tree so that operators quoted inside
// string operands are never touched.
func convertTestCommand(n *sitter.Node, src []byte, text string) string {
	if expr := n.NamedChild(0); expr != nil {
		return convertTestExpr(expr, src)
	}

	inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text, "[["), "]]"))

	return "[ " + inner + " ]"
}

func convertTestExpr(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "binary_expression":
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")

		if left == nil || right == nil {
			return "[ " + n.Content(src) + " ]"
		}

		op := strings.TrimSpace(string(src[left.EndByte():right.StartByte()]))

		switch op {
		case "&&":
			return convertTestExpr(left, src) + " && " + convertTestExpr(right, src)
		case "||":
			return convertTestExpr(left, src) + " || " + convertTestExpr(right, src)
		case "=~":
			return convertRegexMatch(n, src)
		case "==":
			return "[ " + left.Content(src) + " = " + right.Content(src) + " ]"
		default:
			return "[ " + left.Content(src) + " " + op + " " + right.Content(src) + " ]"
		}
	case "unary_expression":
		if n.ChildCount() > 1 && n.Child(0).Content(src) == "!" {
			return "! " + convertTestExpr(n.Child(int(n.ChildCount())-1), src)
		}

		return "[ " + n.Content(src) + " ]"
	default:
		return "[ " + n.Content(src) + " ]"
	}
}

// convertRegexMatch turns `[[ $x =~ re ]]` into a grep -Eq pipeline,
// preserving a leading negation on the matched operand.
func convertRegexMatch(n *sitter.Node, src []byte) string {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")

	if left == nil || right == nil {
		return n.Content(src)
	}

	negated := false
	leftText := left.Content(src)

	if left.Type() == "unary_expression" && left.ChildCount() > 1 {
		negated = true
		leftText = left.Child(int(left.ChildCount()) - 1).Content(src)
	}

	pattern := strings.Trim(right.Content(src), `"'`)

	cmd := "echo " + ensureQuoted(leftText) + ` | grep -Eq "` + pattern + `"`
	if negated {
		return "! " + cmd
	}

	return cmd
}
