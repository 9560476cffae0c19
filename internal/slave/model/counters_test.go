// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import "testing"

func TestCountersIncGetReset(t *testing.T) {
	var cs Counters
	cs.Inc(CntBusMsg)
	cs.Inc(CntBusMsg)
	cs.Inc(CntException)

	if cs.Get(CntBusMsg) != 2 {
		t.Fatalf("CntBusMsg = %d, want 2", cs.Get(CntBusMsg))
	}
	cs.Reset(CntBusMsg)
	if cs.Get(CntBusMsg) != 0 {
		t.Fatalf("CntBusMsg after Reset = %d, want 0", cs.Get(CntBusMsg))
	}
	if cs.Get(CntException) != 1 {
		t.Fatalf("Reset of one counter should not affect others")
	}
}

func TestCountersResetAll(t *testing.T) {
	var cs Counters
	cs.Inc(CntBusMsg)
	cs.Inc(CntNAK)
	cs.ResetAll()
	if cs.Get(CntBusMsg) != 0 || cs.Get(CntNAK) != 0 {
		t.Fatalf("expected all counters zeroed after ResetAll")
	}
}
