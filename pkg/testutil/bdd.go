package testutil

import "testing"

// Given, When and Then nest subtests whose names read as a scenario, e.g.
// "Given_a_bad_signature/When_it_is_delivered/Then_nothing_runs".
func Given(t *testing.T, situation string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "Given", situation, fn)
}

func When(t *testing.T, action string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "When", action, fn)
}

func Then(t *testing.T, outcome string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "Then", outcome, fn)
}

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return t.Run(keyword+" "+desc, fn)
}
