// Package content propagates the immutability flag across the evaluation
// content graph (evaluation -> template -> item -> scale). Nodes are
// addressed by id through a Repository, and the containment checks run as
// explicit queries rather than walks over in-memory references.
package content
