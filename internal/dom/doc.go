// Package dom provides the mutable document surface the perception agent
// observes and the executor acts on.
//
// It is not a layout engine. Geometry is carried as explicit viewport
// rects, fed either from inline styles (fixtures, tests) or from the CDP
// mirror that replays a live page into the document. What the package
// does model faithfully:
//
//   - tree mutation with synchronous mutation-observer delivery
//   - attribute, style, focus, scroll, and viewport state
//   - hit testing (topmost laid-out element at a point)
//   - event dispatch, including inline on* handlers run through goja
//
// Observer callbacks run synchronously inside the mutating call, which
// mirrors the single-threaded cooperative model the engine assumes.
package dom
