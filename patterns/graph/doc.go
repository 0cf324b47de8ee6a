// Package graph runs workflows shaped as directed acyclic graphs. Each node is
// one step, usually a model call; nodes of the same topological level run in
// parallel and downstream nodes see upstream results through
// NodeInput.UpstreamResults.
//
// Graph[T] parses the output node's result into T with parse.ParseStringAs.
// Shared data lives in a StateProvider, whose Append method merges list values
// written by parallel nodes.
//
//	g, err := graph.NewGraphBuilder[Post](defaultClient).
//	    AddNode("outline", outlineNode).
//	    AddNode("post", postNode).
//	    AddEdge("outline", "post").
//	    Build()
//
//	result, err := g.Execute(ctx, map[string]any{"topic": "Go generics"})
//	fmt.Println(result.Data.Text)
package graph
