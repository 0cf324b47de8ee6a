// Package workflows holds ready-made LLM workflows built on the graph and
// refine packages: a single question, a two-step prompt chain, parallel
// scientist facts with merged ratings, and an iteratively refined outreach
// email.
package workflows
