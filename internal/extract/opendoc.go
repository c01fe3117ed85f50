package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/hyperjump/policyrag/internal/models"
)

const openDocumentContentPath = "content.xml"

// Elements that start a new page in presentations and spreadsheets.
const (
	odpPageTag = "<draw:page"
	odsPageTag = "<table:table "
)

var (
	// odfParagraphEnd closes a paragraph or heading.
	odfParagraphEnd = regexp.MustCompile(`</text:(?:p|h)>`)
	xmlTag          = regexp.MustCompile(`<[^>]+>`)
)

// extractOpenDocument reads content.xml of an OpenDocument file, one line per
// paragraph. With a non-empty pageTag the body is split into one page per
// occurrence of that element.
func extractOpenDocument(content []byte, pageTag string) ([]models.Page, error) {
	zr, err := openZip(content, "OpenDocument")
	if err != nil {
		return nil, err
	}
	data, err := readZipEntry(zr, openDocumentContentPath)
	if err != nil {
		return nil, fmt.Errorf("extract OpenDocument: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("extract OpenDocument: %s not found", openDocumentContentPath)
	}

	body := string(data)
	sections := []string{body}
	if pageTag != "" {
		if parts := strings.Split(body, pageTag); len(parts) > 1 {
			sections = parts[1:]
			for i := range sections {
				sections[i] = pageTag + sections[i]
			}
		}
	}
	pages := make([]models.Page, 0, len(sections))
	for i, section := range sections {
		var lines []string
		for _, para := range odfParagraphEnd.Split(section, -1) {
			text := html.UnescapeString(xmlTag.ReplaceAllString(para, ""))
			if line := strings.Join(strings.Fields(text), " "); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, models.Page{Number: i + 1, Text: strings.Join(lines, "\n")})
	}
	return pages, nil
}
