package export

import "strings"

// ToText renders the content tree as plain text: no formatting,
// bullet-prefixed list items, blank lines between blocks.
func ToText(node *Node) string {
	if node == nil {
		return ""
	}
	return strings.Join(textBlocks(*node), "\n\n")
}

func textBlocks(node Node) []string {
	switch node.Kind {
	case KindDoc:
		return textChildBlocks(node.Content)
	case KindParagraph, KindHeading, KindCodeBlock:
		return []string{nodeText(node)}
	case KindBlockquote:
		return []string{strings.Join(textChildBlocks(node.Content), "\n\n")}
	case KindBulletList, KindOrderedList, KindTaskList:
		var lines []string
		for _, item := range node.Content {
			lines = append(lines, "• "+strings.Join(textChildBlocks(item.Content), "\n"))
		}
		return []string{strings.Join(lines, "\n")}
	case KindHorizontalRule:
		return nil
	case KindText, KindHardBreak:
		return []string{nodeText(node)}
	default:
		return textChildBlocks(node.Content)
	}
}

func textChildBlocks(children []Node) []string {
	var blocks []string
	for _, child := range children {
		blocks = append(blocks, textBlocks(child)...)
	}
	return blocks
}
