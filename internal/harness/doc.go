// Package harness runs end-to-end query scenarios against an in-memory
// store.
//
// A scenario seeds the store from a fixture, optionally resolves a request
// into entities, canonicalizes a plan, executes it and checks the issued
// statements and returned rows.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	fixture:
//	  students:
//	    - {id: 1, name: Aisha Rahman, programme: Computer Science}
//	query: "grades for calculus"     # optional
//	terms: [calculus]                # optional
//	role: staff                      # staff | student
//	user_id: ""                      # required for role student
//	raw: false                       # skip canonicalization
//	plan:
//	  steps:
//	    - table: students
//	      where: {programme: Computer Science}
//	expect_error: STORE_QUERY        # optional engine error code
//	assertions:
//	  - type: trace_contains
//	    step: 0
//	    statement: "ALLOW FILTERING"
//	  - type: final_state
//	    step: 0
//	    where: {id: 1}
//	    expect: {name: Aisha Rahman}
//
// # Assertion Types
//
//   - trace_contains: a statement of the step contains the given text
//   - trace_order: statements containing each text appear in order
//   - trace_count: the step issued exactly N statements
//   - step_state: the step finished in the given state
//   - row_count: the step returned exactly N rows (or counted N)
//   - final_state: exactly one row of the step matches where and carries
//     the expected values
//
// # Deterministic Testing
//
// Every scenario runs in a fresh in-memory SQLite database with a fixed run
// ID, so traces are stable enough for golden comparison.
package harness
