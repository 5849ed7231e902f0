// Package input builds and renders the engine's input decks.
//
// An Input is an insertion-ordered table of variable assignments seeded from
// a crystal structure. Rendering is deterministic: the same input always
// produces the same bytes, which keeps task directories diffable and lets
// tests compare decks literally. Floats are written in Fortran-friendly
// exponent form and arrays wrap at three numbers per line, matching the
// layout the engine's own documentation uses in its examples.
package input
