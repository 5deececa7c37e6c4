// Package store persists evaluations and their content graph. The GORM
// implementations share one relational database across all worker nodes;
// CachedStore layers a ristretto read cache with coalesced loads on top.
package store
