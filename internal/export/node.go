// Package export converts a document's structured content tree into
// markdown, HTML, plain text, JSON, or PDF.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies a content-tree node. The set is closed; anything
// else parses as KindUnknown and renders as its children.
type Kind string

const (
	KindDoc            Kind = "doc"
	KindParagraph      Kind = "paragraph"
	KindHeading        Kind = "heading"
	KindBulletList     Kind = "bulletList"
	KindOrderedList    Kind = "orderedList"
	KindListItem       Kind = "listItem"
	KindTaskList       Kind = "taskList"
	KindTaskItem       Kind = "taskItem"
	KindCodeBlock      Kind = "codeBlock"
	KindBlockquote     Kind = "blockquote"
	KindHorizontalRule Kind = "horizontalRule"
	KindHardBreak      Kind = "hardBreak"
	KindText           Kind = "text"
	KindUnknown        Kind = ""
)

// MarkKind identifies an inline formatting mark on a text node.
type MarkKind string

const (
	MarkBold      MarkKind = "bold"
	MarkItalic    MarkKind = "italic"
	MarkStrike    MarkKind = "strike"
	MarkCode      MarkKind = "code"
	MarkLink      MarkKind = "link"
	MarkUnderline MarkKind = "underline"
	MarkUnknown   MarkKind = ""
)

// Node is one node of the parsed content tree. Attribute fields are
// populated only for the kinds that carry them.
type Node struct {
	Kind     Kind
	Level    int    // heading
	Language string // codeBlock
	Checked  bool   // taskItem
	Text     string // text
	Marks    []Mark // text
	Content  []Node
}

type Mark struct {
	Kind MarkKind
	Href string // link
}

// ErrMalformedTree reports a content string that is not a valid
// content tree.
var ErrMalformedTree = errors.New("malformed content tree")

type rawMark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs"`
}

type rawNode struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs"`
	Content []rawNode      `json:"content"`
	Text    string         `json:"text"`
	Marks   []rawMark      `json:"marks"`
}

// ParseDocument parses a serialized content tree. The root must be a
// JSON object; an empty or blank content string parses as an empty doc.
func ParseDocument(content []byte) (*Node, error) {
	if len(content) == 0 {
		return &Node{Kind: KindDoc}, nil
	}

	var raw rawNode
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}
	if raw.Type == "" && raw.Text == "" && len(raw.Content) == 0 {
		return nil, fmt.Errorf("%w: empty root node", ErrMalformedTree)
	}

	node := convertNode(raw)
	return &node, nil
}

func convertNode(raw rawNode) Node {
	node := Node{Text: raw.Text}

	switch Kind(raw.Type) {
	case KindDoc, KindParagraph, KindBulletList, KindOrderedList, KindListItem,
		KindTaskList, KindBlockquote, KindHorizontalRule, KindHardBreak, KindText:
		node.Kind = Kind(raw.Type)
	case KindHeading:
		node.Kind = KindHeading
		node.Level = attrInt(raw.Attrs, "level", 1)
		if node.Level < 1 {
			node.Level = 1
		}
		if node.Level > 6 {
			node.Level = 6
		}
	case KindTaskItem:
		node.Kind = KindTaskItem
		node.Checked = attrBool(raw.Attrs, "checked")
	case KindCodeBlock:
		node.Kind = KindCodeBlock
		node.Language = attrString(raw.Attrs, "language")
	default:
		node.Kind = KindUnknown
	}

	for _, m := range raw.Marks {
		node.Marks = append(node.Marks, convertMark(m))
	}
	for _, child := range raw.Content {
		node.Content = append(node.Content, convertNode(child))
	}
	return node
}

func convertMark(raw rawMark) Mark {
	switch MarkKind(raw.Type) {
	case MarkBold, MarkItalic, MarkStrike, MarkCode, MarkUnderline:
		return Mark{Kind: MarkKind(raw.Type)}
	case MarkLink:
		return Mark{Kind: MarkLink, Href: attrString(raw.Attrs, "href")}
	default:
		return Mark{Kind: MarkUnknown}
	}
}

func attrInt(attrs map[string]any, key string, fallback int) int {
	if v, ok := attrs[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func attrBool(attrs map[string]any, key string) bool {
	v, _ := attrs[key].(bool)
	return v
}

func attrString(attrs map[string]any, key string) string {
	v, _ := attrs[key].(string)
	return v
}
