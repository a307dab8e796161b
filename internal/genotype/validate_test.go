package genotype

import (
	"errors"
	"testing"

	"cppnevo/internal/model"
)

func TestValidateRejectsBrokenRecords(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.GenomeRecord)
		want   error
	}{
		{
			name: "self loop",
			mutate: func(r *model.GenomeRecord) {
				r.Connections = append(r.Connections, model.ConnectionRecord{Source: 2, Target: 2, Enabled: true, Innovation: 9})
			},
			want: ErrCycle,
		},
		{
			name: "backward connection",
			mutate: func(r *model.GenomeRecord) {
				r.Connections = append(r.Connections, model.ConnectionRecord{Source: 2, Target: 0, Enabled: false, Innovation: 9})
			},
			want: ErrInvalidGenome,
		},
		{
			name: "duplicate innovation",
			mutate: func(r *model.GenomeRecord) {
				r.Connections[1].Innovation = r.Connections[0].Innovation
			},
			want: ErrInvalidGenome,
		},
		{
			name: "dangling reference",
			mutate: func(r *model.GenomeRecord) {
				r.Connections[0].Target = 7
			},
			want: ErrInvalidGenome,
		},
		{
			name: "bias in wrong slot",
			mutate: func(r *model.GenomeRecord) {
				r.Nodes[0].Role, r.Nodes[1].Role = model.RoleBias, model.RoleInput
			},
			want: ErrInvalidGenome,
		},
		{
			name: "hidden on input layer",
			mutate: func(r *model.GenomeRecord) {
				r.Nodes = append(r.Nodes, model.NodeRecord{ID: 3, Role: model.RoleHidden, Activation: "relu", Layer: 0})
			},
			want: ErrInvalidGenome,
		},
		{
			name: "missing output",
			mutate: func(r *model.GenomeRecord) {
				r.Nodes = r.Nodes[:2]
				r.Connections = nil
			},
			want: ErrInvalidGenome,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := minimalRecord()
			tc.mutate(&rec)
			if _, err := FromRecord(rec); !errors.Is(err, tc.want) {
				t.Fatalf("got=%v want=%v", err, tc.want)
			}
		})
	}
}

func TestValidateAcceptsMinimalRecord(t *testing.T) {
	g := mustFromRecord(t, minimalRecord())
	if err := g.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
