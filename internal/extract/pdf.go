package extract

import (
	"fmt"
	"strings"

	"rsc.io/pdf"
)

// readPDF extracts plain text from a PDF file page by page. The pdf package
// panics on malformed input, so the panic is converted into an error here.
func readPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		var lastY float64
		for _, word := range page.Content().Text {
			if word.S == "" {
				continue
			}
			switch {
			case builder.Len() == 0:
			case word.Y != lastY:
				builder.WriteString("\n")
			default:
				builder.WriteString(" ")
			}
			builder.WriteString(word.S)
			lastY = word.Y
		}
		builder.WriteString("\n")
	}

	return builder.String(), nil
}
