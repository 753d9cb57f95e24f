package scrape

import (
	"regexp"
	"strings"

	"github.com/palontologist/price-oracles/pkg/server/sources"
)

var (
	rowRegex  = regexp.MustCompile(`(?i)<tr[^>]*>([\s\S]*?)</tr>`)
	cellRegex = regexp.MustCompile(`(?i)<t[dh][^>]*>([\s\S]*?)</t[dh]>`)
	tagRegex  = regexp.MustCompile(`<[^>]*>`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&quot;", `"`,
	"&#39;", "'",
)

// stripHTML removes tags and decodes the entities that show up in price cells.
func stripHTML(s string) string {
	s = tagRegex.ReplaceAllString(s, " ")
	s = entityReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// rowCells splits one table row body into trimmed cell texts.
func rowCells(row string) []string {
	matches := cellRegex.FindAllStringSubmatch(row, -1)
	cells := make([]string, 0, len(matches))
	for _, m := range matches {
		cells = append(cells, stripHTML(m[1]))
	}
	return cells
}

func containsCommodity(list []sources.Commodity, c sources.Commodity) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}
