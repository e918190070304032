package structurer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractJSON pulls the JSON object out of a model response. Responses come
// back as bare JSON, as a fenced ```json block inside markdown, or in the
// worst case as a single JSON line buried in prose; all three are handled,
// in that order.
func ExtractJSON(response string) ([]byte, error) {
	trimmed := strings.TrimSpace(response)
	if isJSONObject(trimmed) {
		return []byte(trimmed), nil
	}

	if block, ok := extractFencedJSON([]byte(response)); ok {
		return block, nil
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") && isJSONObject(line) {
			return []byte(line), nil
		}
	}

	return nil, fmt.Errorf("no JSON object found in response")
}

// extractFencedJSON walks the markdown AST and returns the first fenced
// code block containing a valid JSON object. Blocks tagged json are
// preferred over untagged ones.
func extractFencedJSON(src []byte) ([]byte, bool) {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var tagged, untagged [][]byte
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var buf bytes.Buffer
		lines := fence.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		content := buf.Bytes()

		if string(fence.Language(src)) == "json" {
			tagged = append(tagged, content)
		} else {
			untagged = append(untagged, content)
		}
		return ast.WalkContinue, nil
	})

	for _, candidates := range [][][]byte{tagged, untagged} {
		for _, c := range candidates {
			s := strings.TrimSpace(string(c))
			if isJSONObject(s) {
				return []byte(s), true
			}
		}
	}
	return nil, false
}

func isJSONObject(s string) bool {
	return strings.HasPrefix(s, "{") && json.Valid([]byte(s))
}
