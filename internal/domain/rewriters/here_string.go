package rewriters

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// HereString rewrites `cmd <<< word` into `printf '%s\n' word | cmd`,
// preserving any other redirects attached to the same statement.
type HereString struct {
	baseRewriter
}

// NewHereString constructs the here-string rewriter.
func NewHereString() *HereString {
	return &HereString{newBase()}
}

func (r *HereString) Name() string { return "here-string" }

func (r *HereString) Features() []m.Feature {
	return []m.Feature{m.FeatureHereString}
}

func (r *HereString) NodeKinds() []string {
	return []string{"herestring_redirect"}
}

func (r *HereString) Rewrite(src []byte, rc *m.RewriteContext) ([]byte, error) {
	tree, err := r.parseRoot(r.Name(), src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var patches []m.Patch

	visit(tree.RootNode(), func(n *sitter.Node) {
		if n.Type() != "herestring_redirect" {
			return
		}

		// The grammar hangs the redirect directly off the command; only
		// heredoc-style redirects get a redirected_statement wrapper.
		parent := n.Parent()
		if parent == nil || (parent.Type() != "command" && parent.Type() != "redirected_statement") {
			return
		}

		word := strings.TrimSpace(strings.TrimPrefix(n.Content(src), "<<<"))
		if word == "" {
			return
		}

		// The consuming command is the statement minus the here-string
		// redirect itself; other redirects stay attached to it.
		var parts []string

		for i := 0; i < int(parent.ChildCount()); i++ {
			child := parent.Child(i)
			if child.StartByte() == n.StartByte() && child.EndByte() == n.EndByte() {
				continue
			}

			parts = append(parts, child.Content(src))
		}

		if len(parts) == 0 {
			return
		}

		patches = append(patches, m.Patch{
			Start:       int(parent.StartByte()),
			End:         int(parent.EndByte()),
			Replacement: "printf '%s\\n' " + word + " | " + strings.Join(parts, " "),
		})
	})

	if len(patches) == 0 {
		return src, nil
	}

	out, err := Apply(src, patches)
	if err != nil {
		return nil, &TransformError{Rewriter: r.Name(), Reason: "patch conflict", Err: err}
	}

	rc.TransformedFeatures.Add(m.FeatureHereString)

	return out, nil
}
