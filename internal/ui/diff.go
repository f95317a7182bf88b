package ui

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type diffKind int

const (
	diffContext diffKind = iota
	diffAdded
	diffRemoved
	diffHeader
)

type diffLine struct {
	kind diffKind
	text string
}

// parseDiff converts the table rows of a wiki compare result into unified
// diff lines. The body is a run of <tr> elements, so it is parsed as the
// content of a table body.
func parseDiff(body string) []diffLine {
	tbody := &html.Node{Type: html.ElementNode, Data: "tbody", DataAtom: atom.Tbody}
	nodes, err := html.ParseFragment(strings.NewReader(body), tbody)
	if err != nil {
		return nil
	}
	var out []diffLine
	for _, row := range nodes {
		if row.Type != html.ElementNode || row.DataAtom != atom.Tr {
			continue
		}
		var removed, added []diffLine
		contextSeen := false
		for cell := row.FirstChild; cell != nil; cell = cell.NextSibling {
			if cell.Type != html.ElementNode || cell.DataAtom != atom.Td {
				continue
			}
			class, text := attr(cell, "class"), nodeText(cell)
			switch {
			case hasClass(class, "diff-lineno"):
				if text = strings.TrimSpace(text); text != "" {
					out = append(out, diffLine{kind: diffHeader, text: "@@ " + text + " @@"})
				}
			case hasClass(class, "diff-deletedline"):
				removed = append(removed, diffLine{kind: diffRemoved, text: "- " + text})
			case hasClass(class, "diff-addedline"):
				added = append(added, diffLine{kind: diffAdded, text: "+ " + text})
			case hasClass(class, "diff-context"):
				if !contextSeen {
					contextSeen = true
					out = append(out, diffLine{kind: diffContext, text: "  " + text})
				}
			}
		}
		out = append(out, removed...)
		out = append(out, added...)
	}
	return out
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(class, want string) bool {
	for _, c := range strings.Fields(class) {
		if c == want {
			return true
		}
	}
	return false
}

// nodeText returns the text below n with entities decoded. Nested tables
// are skipped.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				sb.WriteString(c.Data)
			case c.Type == html.ElementNode && c.DataAtom == atom.Table:
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return sb.String()
}

func renderDiff(lines []diffLine) string {
	if len(lines) == 0 {
		return styles.DiffContext.Render("(no text changes)")
	}
	rendered := make([]string, len(lines))
	for i, line := range lines {
		style := styles.DiffContext
		switch line.kind {
		case diffAdded:
			style = styles.DiffAdded
		case diffRemoved:
			style = styles.DiffRemoved
		case diffHeader:
			style = styles.ModalTitle
		}
		rendered[i] = style.Render(line.text)
	}
	return strings.Join(rendered, "\n")
}
