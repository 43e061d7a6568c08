// Package domain holds the award ledger entities: the per-student
// AwardRecord with its fixed-capacity label slots, the category enum and
// weights, the upstream summary Student, and the relational StudentRow.
package domain
