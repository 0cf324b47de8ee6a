// Package refine runs the generate, evaluate, optimize loop.
//
// A draft is generated from the task, evaluated into a verdict and a feedback
// paragraph, and while the verdict is not accepted and the iteration budget
// remains, rewritten from that feedback and evaluated again:
//
//	start ──generate──▶ generated ──evaluate──▶ evaluated ──route──▶ terminated
//	                                               ▲   │
//	                                       evaluate│   │optimize
//	                                               │   ▼
//	                                             optimized
//
// Only optimize advances IterationCount. Reaching IterationLimit ends the run
// normally; callers read the final Verdict to tell acceptance from a spent
// budget. The model is reached through a [Generator], so tests can script it
// and production code can pass a [ClientGenerator].
package refine
