package rewriters

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"

	m "shmorph.dev/pkg/shmorph/internal/model"
)

// Rewriter is a single-feature source-to-source transformation unit driven by
// syntax-node matching. Implementations are stateless across invocations and
// must be side-effect-free on anything other than the returned text and the
// context. A rewriter that finds zero matches returns its input unchanged.
type Rewriter interface {
	Name() string
	Features() []m.Feature
	NodeKinds() []string
	Rewrite(src []byte, rc *m.RewriteContext) ([]byte, error)
}

// baseRewriter owns a tree-sitter parser configured for the Bash grammar.
// Parsers are not safe for concurrent use; one rewriter instance belongs to
// exactly one chain, and one chain to one goroutine.
type baseRewriter struct {
	parser *sitter.Parser
}

func newBase() baseRewriter {
	parser := sitter.NewParser()
	parser.SetLanguage(bash.GetLanguage())

	return baseRewriter{parser: parser}
}

// parseRoot parses src and returns the syntax tree. A tree that fails to
// parse, or parses with errors, yields a TransformError: an unparsable seed
// must not be conflated with "no matches".
func (b *baseRewriter) parseRoot(name string, src []byte) (*sitter.Tree, error) {
	tree, err := b.parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, &TransformError{Rewriter: name, Reason: "parse failure", Err: err}
	}

	root := tree.RootNode()
	if root == nil || root.HasError() {
		tree.Close()
		return nil, &TransformError{Rewriter: name, Reason: "input is not valid shell syntax"}
	}

	return tree, nil
}

// visit walks the tree depth-first, calling fn for every node.
func visit(node *sitter.Node, fn func(*sitter.Node)) {
	if node == nil {
		return
	}

	fn(node)

	for i := 0; i < int(node.ChildCount()); i++ {
		visit(node.Child(i), fn)
	}
}

// substitutionBody extracts the command sequence between a substitution's
// opening token and closing parenthesis.
func substitutionBody(node *sitter.Node, src []byte) string {
	count := int(node.ChildCount())
	if count < 2 {
		return ""
	}

	first := node.Child(0)
	last := node.Child(count - 1)

	return strings.TrimSpace(string(src[first.EndByte():last.StartByte()]))
}

// outermostAncestor returns the ancestor of node farthest from it whose kind
// is in kinds, or nil when no ancestor matches.
func outermostAncestor(node *sitter.Node, kinds ...string) *sitter.Node {
	var found *sitter.Node

	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		for _, kind := range kinds {
			if cur.Type() == kind {
				found = cur
				break
			}
		}
	}

	return found
}

func ensureQuoted(s string) string {
	if strings.HasPrefix(s, `"`) || strings.HasPrefix(s, `'`) {
		return s
	}

	return `"` + s + `"`
}
