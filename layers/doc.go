// Package layers holds the compositor's mirror of the content layer tree.
//
// A Tree is immutable from the outside: it changes only by applying a
// Transaction, which is validated against a copy and either replaces the
// tree as a whole or is rejected as a whole. Each Node is a tagged variant
// whose Kind selects which backing payload it carries.
//
// Nodes keep two sets of geometry. The authoritative transform, visible
// region and clip come from the content side. The shadow copies are what
// the compositor draws with; SetShadowProperties resets them from the
// authoritative values before asynchronous pan and zoom adjust them.
package layers
