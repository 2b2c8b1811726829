package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func nodeArray(n int) json.RawMessage {
	nodes := make([]string, n)
	for i := range nodes {
		nodes[i] = fmt.Sprintf(`{"id":"n%d","type":"clip"}`, i)
	}
	return json.RawMessage("[" + strings.Join(nodes, ",") + "]")
}

func TestSaveParamsValidate(t *testing.T) {
	valid := SaveParams{
		Name:  "my workflow",
		Nodes: nodeArray(3),
		Edges: json.RawMessage(`[{"from":"n0","to":"n1"}]`),
	}

	t.Run("valid params", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("edges optional", func(t *testing.T) {
		p := valid
		p.Edges = nil
		assert.NoError(t, p.Validate())
	})

	tests := []struct {
		name       string
		mutate     func(*SaveParams)
		wantReason string
	}{
		{
			name:       "missing name",
			mutate:     func(p *SaveParams) { p.Name = "" },
			wantReason: "name is required",
		},
		{
			name:       "name too long",
			mutate:     func(p *SaveParams) { p.Name = strings.Repeat("x", MaxNameLength+1) },
			wantReason: "name exceeds 100 characters",
		},
		{
			name:       "nodes not an array",
			mutate:     func(p *SaveParams) { p.Nodes = json.RawMessage(`{"id":"n0"}`) },
			wantReason: "nodes must be a JSON array",
		},
		{
			name:       "empty nodes",
			mutate:     func(p *SaveParams) { p.Nodes = json.RawMessage(`[]`) },
			wantReason: "at least one node is required",
		},
		{
			name:       "too many nodes",
			mutate:     func(p *SaveParams) { p.Nodes = nodeArray(MaxNodes + 1) },
			wantReason: "workflow exceeds 100 nodes",
		},
		{
			name:       "edges not an array",
			mutate:     func(p *SaveParams) { p.Edges = json.RawMessage(`"oops"`) },
			wantReason: "edges must be a JSON array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)

			err := p.Validate()
			assert.Error(t, err)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantReason, verr.Reason)
		})
	}
}
