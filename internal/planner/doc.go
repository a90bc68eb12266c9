// Package planner rewrites query plans before execution.
//
// EnhanceStep folds resolved entities into a single step: names are
// canonicalized through the value catalog, cohort pieces are merged into
// one YYYYMM code and every value is cast to its column type.
// CanonicalizePlan applies EnhanceStep to a whole plan and fixes its shape:
// default projections, pruned columns, a students pre-step for subject
// queries filtered by student attributes, and per-user pinning for callers
// in the student role.
package planner
