package export

// Format is an export output representation.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatPDF      Format = "pdf"
)

// ParseFormat maps a wire-format name to a Format; the second return
// is false for unknown names.
func ParseFormat(name string) (Format, bool) {
	switch Format(name) {
	case FormatMarkdown, FormatHTML, FormatText, FormatJSON, FormatPDF:
		return Format(name), true
	case "md":
		return FormatMarkdown, true
	case "txt":
		return FormatText, true
	default:
		return "", false
	}
}

// Ext returns the file extension for the format, dot included.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	case FormatText:
		return ".txt"
	case FormatJSON:
		return ".json"
	case FormatPDF:
		return ".pdf"
	default:
		return ""
	}
}

// MimeType returns the content type for the format.
func (f Format) MimeType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown"
	case FormatHTML:
		return "text/html"
	case FormatText:
		return "text/plain"
	case FormatJSON:
		return "application/json"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Result is a rendered export.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}
