package extracthtml

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DebugPrintSelector prints the outer HTML (or normalised text) of every match
// for selector, each followed by a blank line. It backs the scrape command's
// "-selector" mode and is the first thing to reach for after a NotFound.
func DebugPrintSelector(w io.Writer, body []byte, selector string, textOnly bool) error {
	doc, err := Parse(body)
	if err != nil {
		return err
	}

	var werr error
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		out := NormalizeText(s.Text())
		if !textOnly {
			if h, err := goquery.OuterHtml(s); err == nil {
				out = h
			}
		}
		_, werr = fmt.Fprintf(w, "%s\n\n", out)
		return werr == nil
	})
	return werr
}

// DumpTables lists every <table> in the document with its id, classes, row
// count and header cells, so a schema's container locator can be rewritten
// when the remote markup changes.
func DumpTables(w io.Writer, body []byte) error {
	doc, err := Parse(body)
	if err != nil {
		return err
	}

	tables := doc.Find("table")
	if tables.Length() == 0 {
		_, err := fmt.Fprintln(w, "no tables")
		return err
	}

	var werr error
	tables.EachWithBreak(func(i int, t *goquery.Selection) bool {
		id, _ := t.Attr("id")
		class, _ := t.Attr("class")

		var headers []string
		t.Find("thead th").Each(func(_ int, th *goquery.Selection) {
			if h := NormalizeText(th.Text()); h != "" {
				headers = append(headers, h)
			}
		})

		rows := t.Find("tbody > tr").Length()
		if rows == 0 {
			rows = t.Find("tr").Length()
		}

		_, werr = fmt.Fprintf(w, "table[%d] id=%q class=%q rows=%d\n  headers: %s\n",
			i, id, strings.Join(strings.Fields(class), " "), rows, strings.Join(headers, " | "))
		return werr == nil
	})
	return werr
}
