// Package preparation layers the clinic's preparation policy over the pure bag
// calculation: the fixed one-patient safety margin and the initial water-fill rule.
package preparation
