package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText collects the text nodes under a node, in document order.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var (
	blankRuns      = regexp.MustCompile(`\n\s*\n`)
	repeatedSpaces = regexp.MustCompile(` +`)
)

// CollapseWhitespace squashes runs of blank lines into a single blank line
// and repeated spaces into one space.
func CollapseWhitespace(text string) string {
	text = blankRuns.ReplaceAllString(text, "\n\n")
	text = repeatedSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// FlattenFragment renders an HTML fragment as plain text. <pre> blocks are
// dropped entirely since embedded example code only adds noise to a
// problem description.
func FlattenFragment(fragment string) (string, error) {
	if fragment == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	doc.Find("pre").Remove()
	return CollapseWhitespace(doc.Text()), nil
}
