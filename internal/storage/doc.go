// Package storage persists uploaded media and derived artifacts.
//
// Two backends implement Bucket: a local filesystem tree (fs) and the Supabase
// Storage REST API (supabase). Both stream object bodies so arbitrarily large
// recordings are never buffered in memory.
package storage
