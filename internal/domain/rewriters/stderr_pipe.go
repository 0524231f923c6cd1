package rewriters

import (
	sitter "github.com/smacker/go-tree-sitter"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// StderrPipe rewrites the Bash-only `cmd1 |& cmd2` pipe into the POSIX
// equivalent `cmd1 2>&1 | cmd2`.
type StderrPipe struct {
	baseRewriter
}

// NewStderrPipe constructs the |& rewriter.
func NewStderrPipe() *StderrPipe {
	return &StderrPipe{newBase()}
}

func (r *StderrPipe) Name() string { return "stderr-pipe" }

func (r *StderrPipe) Features() []m.Feature {
	return []m.Feature{m.FeatureStderrPipe}
}

func (r *StderrPipe) NodeKinds() []string {
	return []string{"|&"}
}

// Rewrite replaces every |& token with 2>&1 |.
func (r *StderrPipe) Rewrite(src []byte, rc *m.RewriteContext) ([]byte, error) {
	tree, err := r.parseRoot(r.Name(), src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var patches []m.Patch

	visit(tree.RootNode(), func(n *sitter.Node) {
		if n.Type() == "|&" {
			patches = append(patches, m.Patch{
				Start:       int(n.StartByte()),
				End:         int(n.EndByte()),
				Replacement: "2>&1 |",
			})
		}
	})

	if len(patches) == 0 {
		return src, nil
	}

	out, err := Apply(src, patches)
	if err != nil {
		return nil, &TransformError{Rewriter: r.Name(), Reason: "patch conflict", Err: err}
	}

	rc.TransformedFeatures.Add(m.FeatureStderrPipe)

	return out, nil
}
