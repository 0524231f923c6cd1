package rewriters

import (
	"fmt"
	"regexp"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

var braceRangePattern = regexp.MustCompile(`^\{(-?\d+)\.\.(-?\d+)\}$`)

// BraceRange rewrites numeric brace expansions such as {1..5} into
// $(seq 1 5). Non-numeric and list-style brace expressions are left alone.
type BraceRange struct {
	baseRewriter
}

// NewBraceRange constructs the numeric brace-expansion rewriter.
func NewBraceRange() *BraceRange {
	return &BraceRange{newBase()}
}

func (r *BraceRange) Name() string { return "brace-range" }

func (r *BraceRange) Features() []m.Feature {
	return []m.Feature{m.FeatureBraceRange}
}

func (r *BraceRange) NodeKinds() []string {
	return []string{"brace_expression", "concatenation"}
}

func (r *BraceRange) Rewrite(src []byte, rc *m.RewriteContext) ([]byte, error) {
	tree, err := r.parseRoot(r.Name(), src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var patches []m.Patch

	visit(tree.RootNode(), func(n *sitter.Node) {
		// Ranges with a negative endpoint parse as a concatenation of plain
		// words rather than a brace_expression; the anchored pattern keeps
		// arbitrary concatenations out.
		if n.Type() != "brace_expression" && n.Type() != "concatenation" {
			return
		}

		replacement, ok := seqForRange(n.Content(src))
		if !ok {
			return
		}

		patches = append(patches, m.Patch{
			Start:       int(n.StartByte()),
			End:         int(n.EndByte()),
			Replacement: replacement,
		})
	})

	if len(patches) == 0 {
		return src, nil
	}

	out, err := Apply(src, patches)
	if err != nil {
		return nil, &TransformError{Rewriter: r.Name(), Reason: "patch conflict", Err: err}
	}

	rc.TransformedFeatures.Add(m.FeatureBraceRange)

	return out, nil
}

func seqForRange(text string) (string, bool) {
	groups := braceRangePattern.FindStringSubmatch(text)
	if groups == nil {
		return "", false
	}

	start, err := strconv.Atoi(groups[1])
	if err != nil {
		return "", false
	}

	end, err := strconv.Atoi(groups[2])
	if err != nil {
		return "", false
	}

	if start <= end {
		return fmt.Sprintf("$(seq %d %d)", start, end), true
	}

	return fmt.Sprintf("$(seq %d -1 %d)", start, end), true
}
