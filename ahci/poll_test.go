package ahci

import "testing"

func TestWaitUntilTimeoutSucceedsImmediately(t *testing.T) {
	hal := newFakeHAL()
	if !waitUntilTimeout(hal, func() bool { return true }, 10) {
		t.Fatalf("condition already true should not time out")
	}
}

func TestWaitUntilTimeoutEventuallyTrue(t *testing.T) {
	hal := newFakeHAL()

	calls := 0
	cond := func() bool {
		calls++
		return calls > 3
	}

	if !waitUntilTimeout(hal, cond, 1000) {
		t.Fatalf("condition that eventually becomes true should not time out")
	}
}

func TestWaitUntilTimeoutExpires(t *testing.T) {
	hal := newFakeHAL()

	if waitUntilTimeout(hal, func() bool { return false }, 10) {
		t.Fatalf("condition that never becomes true must time out")
	}
}
