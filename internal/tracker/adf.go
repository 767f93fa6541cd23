package tracker

import "strings"

// adfNode is a node of an Atlassian Document Format tree.
type adfNode struct {
	Type    string    `json:"type"`
	Version int       `json:"version,omitempty"`
	Text    string    `json:"text,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

// adfDocument renders plain text as an ADF document. Blank lines separate
// paragraphs and single newlines become hard breaks.
func adfDocument(text string) adfNode {
	doc := adfNode{Type: "doc", Version: 1, Content: []adfNode{}}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.Trim(block, "\n")
		if strings.TrimSpace(block) == "" {
			continue
		}

		para := adfNode{Type: "paragraph"}
		for i, line := range strings.Split(block, "\n") {
			if i > 0 {
				para.Content = append(para.Content, adfNode{Type: "hardBreak"})
			}
			if line != "" {
				para.Content = append(para.Content, adfNode{Type: "text", Text: line})
			}
		}
		doc.Content = append(doc.Content, para)
	}

	return doc
}
