package export

import (
	"fmt"
	"strings"
)

// ToMarkdown renders the content tree as markdown. Blocks are
// separated by blank lines; ordered lists renumber from 1 regardless
// of source numbering.
func ToMarkdown(node *Node) string {
	if node == nil {
		return ""
	}
	return strings.Join(markdownBlocks(*node), "\n\n")
}

func markdownBlocks(node Node) []string {
	switch node.Kind {
	case KindDoc:
		return markdownChildBlocks(node.Content)
	case KindParagraph:
		return []string{markdownInline(node.Content)}
	case KindHeading:
		return []string{strings.Repeat("#", node.Level) + " " + markdownInline(node.Content)}
	case KindBulletList:
		var lines []string
		for _, item := range node.Content {
			lines = append(lines, markdownListItem("- ", item))
		}
		return []string{strings.Join(lines, "\n")}
	case KindOrderedList:
		var lines []string
		for i, item := range node.Content {
			lines = append(lines, markdownListItem(fmt.Sprintf("%d. ", i+1), item))
		}
		return []string{strings.Join(lines, "\n")}
	case KindTaskList:
		var lines []string
		for _, item := range node.Content {
			prefix := "- [ ] "
			if item.Checked {
				prefix = "- [x] "
			}
			lines = append(lines, markdownListItem(prefix, item))
		}
		return []string{strings.Join(lines, "\n")}
	case KindCodeBlock:
		return []string{"```" + node.Language + "\n" + nodeText(node) + "\n```"}
	case KindBlockquote:
		inner := strings.Join(markdownChildBlocks(node.Content), "\n\n")
		return []string{prefixLines(inner, "> ")}
	case KindHorizontalRule:
		return []string{"---"}
	case KindText, KindHardBreak:
		// Inline node at block position; render as a bare line.
		return []string{markdownInline([]Node{node})}
	default:
		// Unknown kind: concatenate whatever the children produce.
		return markdownChildBlocks(node.Content)
	}
}

func markdownChildBlocks(children []Node) []string {
	var blocks []string
	for _, child := range children {
		blocks = append(blocks, markdownBlocks(child)...)
	}
	return blocks
}

// markdownListItem renders a list item's blocks, prefixing the first
// line with the marker and indenting continuation lines to match.
func markdownListItem(marker string, item Node) string {
	content := strings.Join(markdownChildBlocks(item.Content), "\n")
	lines := strings.Split(content, "\n")
	indent := strings.Repeat(" ", len(marker))
	for i := range lines {
		if i == 0 {
			lines[i] = marker + lines[i]
		} else if lines[i] != "" {
			lines[i] = indent + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

func markdownInline(nodes []Node) string {
	var b strings.Builder
	for _, node := range nodes {
		switch node.Kind {
		case KindText:
			b.WriteString(markdownText(node))
		case KindHardBreak:
			b.WriteString("\n")
		default:
			b.WriteString(markdownInline(node.Content))
		}
	}
	return b.String()
}

// markdownText wraps the text in its marks innermost-first, in the
// order the marks appear.
func markdownText(node Node) string {
	text := node.Text
	for _, mark := range node.Marks {
		switch mark.Kind {
		case MarkBold:
			text = "**" + text + "**"
		case MarkItalic:
			text = "*" + text + "*"
		case MarkStrike:
			text = "~~" + text + "~~"
		case MarkCode:
			text = "`" + text + "`"
		case MarkLink:
			text = "[" + text + "](" + mark.Href + ")"
		}
	}
	return text
}

func prefixLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

// nodeText concatenates the raw text of a node's subtree.
func nodeText(node Node) string {
	if node.Kind == KindText {
		return node.Text
	}
	var b strings.Builder
	for _, child := range node.Content {
		if child.Kind == KindHardBreak {
			b.WriteString("\n")
			continue
		}
		b.WriteString(nodeText(child))
	}
	return b.String()
}
