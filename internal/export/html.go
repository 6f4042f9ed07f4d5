package export

import (
	"fmt"
	"html"
	"strings"
)

// ToHTML renders the content tree as an HTML fragment. Text content
// and link hrefs are escaped.
func ToHTML(node *Node) string {
	if node == nil {
		return ""
	}
	return strings.TrimRight(renderHTML(*node), "\n")
}

func renderHTML(node Node) string {
	switch node.Kind {
	case KindDoc:
		return renderHTMLChildren(node.Content)
	case KindParagraph:
		return fmt.Sprintf("<p>%s</p>\n", renderHTMLChildren(node.Content))
	case KindHeading:
		return fmt.Sprintf("<h%d>%s</h%d>\n", node.Level, renderHTMLChildren(node.Content), node.Level)
	case KindBulletList:
		return fmt.Sprintf("<ul>\n%s</ul>\n", renderHTMLChildren(node.Content))
	case KindOrderedList:
		return fmt.Sprintf("<ol>\n%s</ol>\n", renderHTMLChildren(node.Content))
	case KindListItem:
		return fmt.Sprintf("<li>%s</li>\n", renderHTMLChildren(node.Content))
	case KindTaskList:
		return fmt.Sprintf("<ul class=\"task-list\">\n%s</ul>\n", renderHTMLChildren(node.Content))
	case KindTaskItem:
		checked := ""
		if node.Checked {
			checked = " checked"
		}
		return fmt.Sprintf("<li><input type=\"checkbox\" disabled%s> %s</li>\n", checked, renderHTMLChildren(node.Content))
	case KindCodeBlock:
		return fmt.Sprintf("<pre><code>%s</code></pre>\n", html.EscapeString(nodeText(node)))
	case KindBlockquote:
		return fmt.Sprintf("<blockquote>\n%s</blockquote>\n", renderHTMLChildren(node.Content))
	case KindHorizontalRule:
		return "<hr>\n"
	case KindHardBreak:
		return "<br>"
	case KindText:
		return renderHTMLText(node)
	default:
		return renderHTMLChildren(node.Content)
	}
}

func renderHTMLChildren(children []Node) string {
	var b strings.Builder
	for _, child := range children {
		b.WriteString(renderHTML(child))
	}
	return b.String()
}

// renderHTMLText applies marks from the outside in, so the first mark
// encountered ends up outermost.
func renderHTMLText(node Node) string {
	text := html.EscapeString(node.Text)
	for i := len(node.Marks) - 1; i >= 0; i-- {
		switch node.Marks[i].Kind {
		case MarkBold:
			text = "<strong>" + text + "</strong>"
		case MarkItalic:
			text = "<em>" + text + "</em>"
		case MarkStrike:
			text = "<s>" + text + "</s>"
		case MarkCode:
			text = "<code>" + text + "</code>"
		case MarkUnderline:
			text = "<u>" + text + "</u>"
		case MarkLink:
			text = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(node.Marks[i].Href), text)
		}
	}
	return text
}
