package engine

import "testing"

func TestNext_CyclesThroughFourPhases(t *testing.T) {
	seq := []Phase{NSGreen, NSYellow, EWGreen, EWYellow, NSGreen}
	for i := 0; i < len(seq)-1; i++ {
		if got := Next(seq[i]); got != seq[i+1] {
			t.Fatalf("Next(%d) = %d, want %d", seq[i], got, seq[i+1])
		}
	}
}

func TestColors_SafetyInvariantHoldsForEveryPhase(t *testing.T) {
	for _, p := range []Phase{NSGreen, NSYellow, EWGreen, EWYellow} {
		nsColor := Colors(p, North)
		ewColor := Colors(p, East)
		if (nsColor == Green || nsColor == Yellow) && (ewColor == Green || ewColor == Yellow) {
			t.Fatalf("phase %d: both axes non-red: ns=%s ew=%s", p, nsColor, ewColor)
		}
		if Colors(p, North) != Colors(p, South) {
			t.Fatalf("phase %d: N/S partners disagree", p)
		}
		if Colors(p, East) != Colors(p, West) {
			t.Fatalf("phase %d: E/W partners disagree", p)
		}
	}
}

func TestTimeUntilGreen_FutureGreenSemantics(t *testing.T) {
	// From phase EWGreen (E/W green for 60s), N/S must wait dur+4.
	if got := TimeUntilGreen(EWGreen, North, 60, 60); got != 64 {
		t.Fatalf("got %d, want 64", got)
	}
	// From phase EWYellow, N/S waits just the fixed yellow duration.
	if got := TimeUntilGreen(EWYellow, North, 60, 60); got != 4 {
		t.Fatalf("got %d, want 4", got)
	}
	// Symmetric case on the E/W axis.
	if got := TimeUntilGreen(NSGreen, East, 30, 45); got != 34 {
		t.Fatalf("got %d, want 34", got)
	}
	if got := TimeUntilGreen(NSYellow, East, 30, 45); got != 4 {
		t.Fatalf("got %d, want 4", got)
	}
	// A direction already green has nothing to wait for.
	if got := TimeUntilGreen(NSGreen, North, 60, 60); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestDuration_YellowIsFixedRegardlessOfConfiguredDuration(t *testing.T) {
	if got := Duration(NSYellow, 120, 30); got != YellowDuration {
		t.Fatalf("got %d, want %d", got, YellowDuration)
	}
	if got := Duration(EWYellow, 120, 30); got != YellowDuration {
		t.Fatalf("got %d, want %d", got, YellowDuration)
	}
	if got := Duration(NSGreen, 120, 30); got != 120 {
		t.Fatalf("got %d, want 120", got)
	}
	if got := Duration(EWGreen, 120, 30); got != 30 {
		t.Fatalf("got %d, want 30", got)
	}
}

func TestDirection_PartnerAndConflicts(t *testing.T) {
	if North.Partner() != South || South.Partner() != North {
		t.Fatal("N/S must be partners")
	}
	if East.Partner() != West || West.Partner() != East {
		t.Fatal("E/W must be partners")
	}
	nc := North.Conflicts()
	if nc != [2]Direction{East, West} {
		t.Fatalf("North conflicts = %v, want [East West]", nc)
	}
	ec := East.Conflicts()
	if ec != [2]Direction{North, South} {
		t.Fatalf("East conflicts = %v, want [North South]", ec)
	}
}
