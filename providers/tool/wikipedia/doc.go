// Package wikipedia provides a chat tool that searches Wikipedia and returns
// the introduction of the best matching articles as Markdown.
package wikipedia
