package rewriters

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// ProcessSubstitution rewrites <(cmd) and >(cmd) into mktemp-backed temp
// files. Input substitutions become a temp file written before the enclosing
// statement and removed after it; output substitutions invert the data flow
// through the temp file. Nested substitutions stay inside the outer
// producer's text and are finished by later chain passes.
type ProcessSubstitution struct {
	baseRewriter
}

// NewProcessSubstitution constructs the process-substitution rewriter.
func NewProcessSubstitution() *ProcessSubstitution {
	return &ProcessSubstitution{newBase()}
}

func (r *ProcessSubstitution) Name() string { return "process-substitution" }

func (r *ProcessSubstitution) Features() []m.Feature {
	return []m.Feature{m.FeatureProcessSubstitution}
}

func (r *ProcessSubstitution) NodeKinds() []string {
	return []string{"process_substitution"}
}

func (r *ProcessSubstitution) Rewrite(src []byte, rc *m.RewriteContext) ([]byte, error) {
	tree, err := r.parseRoot(r.Name(), src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()

	patches, rewrittenStmts := r.rewriteOutputSubstitutions(root, src, rc)
	patches = append(patches, r.rewriteInputSubstitutions(root, src, rc, rewrittenStmts)...)

	if len(patches) == 0 {
		return src, nil
	}

	out, err := Apply(src, patches)
	if err != nil {
		return nil, &TransformError{Rewriter: r.Name(), Reason: "patch conflict", Err: err}
	}

	rc.TransformedFeatures.Add(m.FeatureProcessSubstitution)

	return out, nil
}

type byteRange struct {
	start, end uint32
}

// rewriteOutputSubstitutions handles `cmd > >(consumer)` statements: the
// producer writes to a temp file and the consumer reads it afterwards.
func (r *ProcessSubstitution) rewriteOutputSubstitutions(root *sitter.Node, src []byte, rc *m.RewriteContext) ([]m.Patch, map[byteRange]bool) {
	var patches []m.Patch

	rewritten := map[byteRange]bool{}

	visit(root, func(stmt *sitter.Node) {
		if stmt.Type() != "redirected_statement" {
			return
		}

		ps := outputSubstitutionTarget(stmt)
		if ps == nil {
			return
		}

		consumer := substitutionBody(ps, src)
		if consumer == "" {
			return
		}

		body := statementBody(stmt)
		if body == nil {
			return
		}

		tmp := rc.NextTempVar()
		replacement := fmt.Sprintf("%[1]s=$(mktemp)\n%[2]s > \"$%[1]s\"\n( %[3]s; ) < \"$%[1]s\"\nrm -f \"$%[1]s\"\n",
			tmp, body.Content(src), consumer)

		patches = append(patches, m.Patch{
			Start:       int(stmt.StartByte()),
			End:         int(stmt.EndByte()),
			Replacement: replacement,
		})

		rewritten[byteRange{stmt.StartByte(), stmt.EndByte()}] = true
	})

	return patches, rewritten
}

// outputSubstitutionTarget returns the >(...) node used as a file-redirect
// destination of stmt, if any.
func outputSubstitutionTarget(stmt *sitter.Node) *sitter.Node {
	for i := 0; i < int(stmt.ChildCount()); i++ {
		redirect := stmt.Child(i)
		if redirect.Type() != "file_redirect" {
			continue
		}

		for j := 0; j < int(redirect.ChildCount()); j++ {
			child := redirect.Child(j)
			if child.Type() == "process_substitution" && child.ChildCount() > 0 && child.Child(0).Type() == ">(" {
				return child
			}
		}
	}

	return nil
}

func statementBody(stmt *sitter.Node) *sitter.Node {
	for i := 0; i < int(stmt.ChildCount()); i++ {
		child := stmt.Child(i)
		if child.Type() == "command" || child.Type() == "pipeline" {
			return child
		}
	}

	return nil
}

// inputGroup collects every <(...) occurrence under one enclosing statement
// so the statement gets a single prefix/suffix insertion pair.
type inputGroup struct {
	stmt *sitter.Node
	subs []*sitter.Node
}

func (r *ProcessSubstitution) rewriteInputSubstitutions(root *sitter.Node, src []byte, rc *m.RewriteContext, skip map[byteRange]bool) []m.Patch {
	var (
		groups []*inputGroup
		index  = map[byteRange]*inputGroup{}
	)

	visit(root, func(n *sitter.Node) {
		if n.Type() != "process_substitution" {
			return
		}

		if n.ChildCount() == 0 || n.Child(0).Type() != "<(" {
			return
		}

		// A substitution nested inside another one travels along as part of
		// the outer producer's text; the next chain pass picks it up there.
		// Emitting its own producer block here would run it twice.
		if outermostAncestor(n, "process_substitution") != nil {
			return
		}

		stmt := outermostAncestor(n, "command", "pipeline", "redirected_statement")
		if stmt == nil {
			return
		}

		key := byteRange{stmt.StartByte(), stmt.EndByte()}
		if skip[key] {
			return
		}

		group, ok := index[key]
		if !ok {
			group = &inputGroup{stmt: stmt}
			index[key] = group
			groups = append(groups, group)
		}

		group.subs = append(group.subs, n)
	})

	var patches []m.Patch

	for _, group := range groups {
		var prefix, suffix strings.Builder

		for _, ps := range group.subs {
			producer := substitutionBody(ps, src)
			if producer == "" {
				continue
			}

			tmp := rc.NextTempVar()

			fmt.Fprintf(&prefix, "%[1]s=$(mktemp)\n{ %[2]s; } > \"$%[1]s\"\n", tmp, producer)
			fmt.Fprintf(&suffix, "\nrm -f \"$%s\"", tmp)

			patches = append(patches, m.Patch{
				Start:       int(ps.StartByte()),
				End:         int(ps.EndByte()),
				Replacement: fmt.Sprintf("\"$%s\"", tmp),
			})
		}

		if prefix.Len() > 0 {
			patches = append(patches, m.Patch{
				Start:       int(group.stmt.StartByte()),
				End:         int(group.stmt.StartByte()),
				Replacement: prefix.String(),
			})
		}

		if suffix.Len() > 0 {
			patches = append(patches, m.Patch{
				Start:       int(group.stmt.EndByte()),
				End:         int(group.stmt.EndByte()),
				Replacement: suffix.String(),
			})
		}
	}

	return patches
}
