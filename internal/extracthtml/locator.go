package extracthtml

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CompileLocator turns a Locator into a CSS selector.
//
// The output is deterministic: attribute constraints are emitted in sorted
// order so the same locator always yields the same selector (and the same
// NotFound message).
//
//	{Tag: "td", Attrs: {"class": "zentriert"}, Absent: ["title"]}
//	=> td[class~="zentriert"]:not([title])
func CompileLocator(l Locator) (string, error) {
	if s := strings.TrimSpace(l.Selector); s != "" {
		return s, nil
	}
	if l.IsZero() {
		return "", fmt.Errorf("locator has neither selector nor tag/attribute constraints")
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(l.Tag))

	keys := make([]string, 0, len(l.Attrs))
	for k := range l.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := checkAttrName(k); err != nil {
			return "", err
		}
		op := "="
		if k == "class" {
			op = "~="
		}
		fmt.Fprintf(&b, `[%s%s"%s"]`, k, op, quoteCSS(l.Attrs[k]))
	}
	for _, k := range sortedCopy(l.Present) {
		if err := checkAttrName(k); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "[%s]", k)
	}
	for _, k := range sortedCopy(l.Absent) {
		if err := checkAttrName(k); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, ":not([%s])", k)
	}
	return b.String(), nil
}

// findAll evaluates a compiled locator relative to root.
func findAll(root *goquery.Selection, l Locator, sel string) *goquery.Selection {
	if l.Direct {
		return root.ChildrenFiltered(sel)
	}
	return root.Find(sel)
}

func checkAttrName(k string) error {
	if k == "" || strings.ContainsAny(k, " \t\n\"'[]=()") {
		return fmt.Errorf("invalid attribute name %q", k)
	}
	return nil
}

func quoteCSS(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
