// Package harness runs scripted participant sessions against compiled
// timelines.
//
// A scenario names a timeline document, a seed and a list of timed inputs.
// The harness compiles the timeline with sequential ids, drives the engine
// on a manual clock, persists the finished run to SQLite and checks the
// scenario's assertions. Sessions are deterministic, so their traces can be
// compared against golden files.
//
// # Scenario Format
//
//	name: retry_then_correct
//	description: "Wrong answer, retry, then correct"
//	timeline: retry.timeline.yaml
//	tasks_dir: ../tasks
//	seed: 7
//	participant: p-001
//	inputs:
//	  - {wait: 300ms, key: space}
//	  - {wait: 400ms, key: j}
//	  - {wait: 200ms, click: q1-b, x: 50, y: 50}
//	  - {fire: end-t}
//	  - {repeat_amount: {step: q1, amount: 3}}
//	assertions:
//	  - {type: step_order, steps: [intro, q1, q1, outro]}
//	  - {type: activation_count, step: q1, count: 2}
//	  - {type: correct, step: q1, expect: true}
//	  - {type: summary, expect: {correct: 2, accuracy: 0.5}}
//	  - {type: finished, expect: true}
//	  - {type: persisted, count: 5}
//
// Waits fire every timer that falls due on the way, one deadline at a
// time. After the last input, remaining timers run out until the run
// finishes or the scenario timeout of simulated time has passed.
//
// # Assertion Types
//
//   - step_order: lineages were activated in this order, gaps allowed
//   - activation_count: a lineage was activated exactly count times
//   - correct: verdict of the last scored result of a lineage
//   - summary: subset match against the results summary
//   - finished: whether the run reached its terminal step
//   - persisted: number of results in the stored run
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/retry_then_correct.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario, harness.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
