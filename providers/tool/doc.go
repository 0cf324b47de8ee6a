// Package tool turns typed Go functions into tools a chat model can call.
//
// [NewTool] derives the parameter schema from the input type, so a search tool
// is declared as:
//
//	search := tool.NewTool("duckduckgo_search", runSearch,
//	    tool.WithDescription("Search the web for a query."),
//	)
//
// Tools are grouped in a [Catalog] and handed to core/client via
// client.WithTools. Concrete tools live in the sub-packages.
package tool
