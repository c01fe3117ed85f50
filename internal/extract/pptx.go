package extract

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/policyrag/internal/models"
)

// slidePath matches ppt/slides/slideN.xml and captures N.
var slidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> with any attributes.
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// extractPPTX returns one page per slide, ordered by slide number.
func extractPPTX(content []byte) ([]models.Page, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return nil, err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePath.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	pages := make([]models.Page, 0, len(slides))
	for _, s := range slides {
		data, err := readZipEntry(zr, s.name)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		var parts []string
		for _, m := range atTag.FindAllSubmatch(data, -1) {
			if t := strings.TrimSpace(html.UnescapeString(string(m[1]))); t != "" {
				parts = append(parts, t)
			}
		}
		pages = append(pages, models.Page{Number: s.n, Text: strings.Join(parts, " ")})
	}
	return pages, nil
}
