// Package valueindex holds the authoritative value vocabulary used to
// reconcile user text with what is actually stored.
//
// For each value family (subject, programme, country, race, financialaid)
// an AliasMap groups every raw stored spelling under its canonical key and
// picks one display form. The maps are built once, from a live distinct-value
// snapshot when the store is reachable, from a cached snapshot when it is
// not, and from a static fallback list as a last resort. After construction
// they are read-only and safe for concurrent use.
package valueindex
