package export

import "fmt"

// Options tweaks rendering per format.
type Options struct {
	// IncludeStyles wraps HTML output in a minimal styled document
	// shell instead of returning a bare fragment.
	IncludeStyles bool
}

// Render converts a document's serialized content tree into the
// requested format. The content is parsed first, so a malformed tree
// fails with ErrMalformedTree for every format, including JSON.
func Render(title string, content []byte, format Format, opts Options) (*Result, error) {
	node, err := ParseDocument(content)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch format {
	case FormatMarkdown:
		data = []byte(ToMarkdown(node))
	case FormatHTML:
		fragment := ToHTML(node)
		if opts.IncludeStyles {
			page, err := RenderStandaloneHTML(title, fragment)
			if err != nil {
				return nil, fmt.Errorf("render standalone html: %w", err)
			}
			fragment = page
		}
		data = []byte(fragment)
	case FormatText:
		data = []byte(ToText(node))
	case FormatJSON:
		// Identity: the validated tree passes through unchanged.
		data = append([]byte(nil), content...)
	case FormatPDF:
		page, err := RenderStandaloneHTML(title, ToHTML(node))
		if err != nil {
			return nil, fmt.Errorf("render standalone html: %w", err)
		}
		return renderPDF(page, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	return &Result{
		Data:     data,
		Filename: sanitizeFilename(title) + format.Ext(),
		MimeType: format.MimeType(),
	}, nil
}

// sanitizeFilename creates a safe filename from a title.
func sanitizeFilename(title string) string {
	result := ""
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}

	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "document"
	}
	return result
}
