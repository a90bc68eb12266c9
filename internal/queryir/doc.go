// Package queryir defines the query plan that the planner produces and the
// executor runs.
//
// A Plan is an ordered list of Steps. Each Step reads one table with a set of
// per-column Conditions. The store has no joins, so a step can name an
// earlier step in LinkFromStep: the executor collects the earlier step's ids
// and feeds them to this step as an IN filter on LinkColumn.
//
//	Plan{Steps: []Step{
//	    {Table: "students", Select: []string{"id"},
//	     Where: map[string]Condition{"cohort": {Op: OpEQ, Value: "202301"}}},
//	    {Table: "subjects", LinkFromStep: Ptr(0),
//	     Where: map[string]Condition{"grade": {Op: OpEQ, Value: "A"}}},
//	}}
//
// Operators split into two groups. EQ, GT, GTE, LT, LTE, IN and BETWEEN are
// native and compile into the statement. NE, CONTAINS and LIKE are not
// supported by the store and are applied locally to the returned rows.
//
// Plans arrive from outside (an NL front end, a YAML file) and are untrusted.
// Validate rejects malformed plans before any statement is issued.
package queryir
