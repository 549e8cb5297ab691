package gpio

import "testing"

func TestEdgePhysical(t *testing.T) {
	tests := []struct {
		edge      Edge
		activeLow bool
		want      Edge
	}{
		{RisingEdge, false, RisingEdge},
		{FallingEdge, false, FallingEdge},
		{BothEdges, false, BothEdges},
		{NoEdge, false, NoEdge},
		{RisingEdge, true, FallingEdge},
		{FallingEdge, true, RisingEdge},
		{BothEdges, true, BothEdges},
		{NoEdge, true, NoEdge},
	}
	for _, tt := range tests {
		if got := tt.edge.Physical(tt.activeLow); got != tt.want {
			t.Errorf("%s.Physical(activeLow=%v) = %s, want %s", tt.edge, tt.activeLow, got, tt.want)
		}
	}
}
