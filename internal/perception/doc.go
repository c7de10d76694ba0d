// Package perception materializes a page's interactive surface into a
// stable, diff-able set of action candidates and maintains it under DOM
// mutation.
//
// The engine wires three observer sources (mutations, resizes,
// per-element intersections) plus window scroll/resize into one
// debounced update. Each update re-extracts the candidate set, diffs it
// against the previous emission, and publishes a minimal delta. Candidate
// identity is keyed by element identity, so ids survive attribute, class,
// and position churn.
package perception
