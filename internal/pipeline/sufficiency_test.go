package pipeline

import (
	"context"
	"testing"
	"time"
)

func checkByName(checks []SufficiencyCheck, name string) (SufficiencyCheck, bool) {
	for _, c := range checks {
		if c.Name == name {
			return c, true
		}
	}
	return SufficiencyCheck{}, false
}

func TestSufficiencyChecker_Fixtures(t *testing.T) {
	s := loadTestFixtures(t)
	checker := NewSufficiencyChecker(s.snapshots, s.prices, 180, 3, 10).
		WithClock(func() time.Time { return fixtureNow })

	results, err := checker.Check(context.Background(), []string{FixtureScenario, FixtureRich, FixtureNoPrices})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	// TEST: 5 snapshots, 11 consecutive closes spanning them
	if !results[0].AllPass {
		t.Errorf("expected %s to pass all checks: %+v", FixtureScenario, results[0].Checks)
	}

	rich := results[1]
	if c, ok := checkByName(rich.Checks, CheckSnapshots); !ok || !c.Pass || c.Actual != "120" {
		t.Errorf("unexpected snapshot check for %s: %+v", FixtureRich, c)
	}
	if c, ok := checkByName(rich.Checks, CheckPriceIntegrity); !ok || !c.Pass {
		t.Errorf("unexpected integrity check for %s: %+v", FixtureRich, c)
	}

	noPrices := results[2]
	if noPrices.AllPass {
		t.Error("expected NOPX to fail")
	}
	for _, name := range []string{CheckSnapshots, CheckPriceRows, CheckPriceCoverage, CheckPriceIntegrity} {
		c, ok := checkByName(noPrices.Checks, name)
		if !ok {
			t.Errorf("missing check %s", name)
			continue
		}
		if c.Pass {
			t.Errorf("expected %s to fail for NOPX", name)
		}
	}
}
