package query

import (
	"testing"

	"github.com/whatevertogo/asset-analyzer/pkg/record"
	"github.com/whatevertogo/asset-analyzer/pkg/schema"
)

func bestiary() []*record.Record {
	t := monsterType()
	return []*record.Record{
		record.New("monsters/goblin", t).
			Set("name", record.String("Goblin")).
			Set("hp", record.Int(10)),
		record.New("monsters/dragon", t).
			Set("name", record.String("Dragon")).
			Set("hp", record.Int(200)),
	}
}

func keys(records []*record.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Key
	}
	return out
}

func TestEmptyGroupIsPassThrough(t *testing.T) {
	reg := schema.NewRegistry()
	records := bestiary()

	got := Run(reg, NewGroup(And), records)
	if len(got) != len(records) {
		t.Fatalf("empty group matched %d records, want %d", len(got), len(records))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("result[%d] = %s, want %s (order must be preserved)", i, got[i].Key, records[i].Key)
		}
	}

	// All conditions disabled collapses to the same pass-through.
	c := NewCondition("hp", OpGt, record.Int(1000))
	c.Enabled = false
	if got := Run(reg, NewGroup(And, c), records); len(got) != len(records) {
		t.Errorf("all-disabled group matched %d records, want %d", len(got), len(records))
	}

	// So does a nil group.
	if got := Run(reg, nil, records); len(got) != len(records) {
		t.Errorf("nil group matched %d records, want %d", len(got), len(records))
	}
}

func TestAndGroup(t *testing.T) {
	reg := schema.NewRegistry()
	records := bestiary()

	group := NewGroup(And, NewCondition("hp", OpGt, record.Int(50)))
	got := Run(reg, group, records)
	if len(got) != 1 || got[0].Key != "monsters/dragon" {
		t.Errorf("hp > 50 matched %v, want [monsters/dragon]", keys(got))
	}

	group = NewGroup(And,
		NewCondition("hp", OpGt, record.Int(50)),
		NewCondition("name", OpContains, record.String("gob")),
	)
	if got := Run(reg, group, records); len(got) != 0 {
		t.Errorf("conjunction matched %v, want none", keys(got))
	}
}

func TestOrGroup(t *testing.T) {
	reg := schema.NewRegistry()
	records := bestiary()

	group := NewGroup(Or,
		NewCondition("name", OpContains, record.String("go")),
		NewCondition("hp", OpGt, record.Int(100)),
	)
	got := Run(reg, group, records)
	if len(got) != 2 {
		t.Fatalf("disjunction matched %v, want both records", keys(got))
	}
	if got[0].Key != "monsters/goblin" || got[1].Key != "monsters/dragon" {
		t.Errorf("disjunction order = %v, want input order", keys(got))
	}
}

func TestGroupShortCircuit(t *testing.T) {
	reg := schema.NewRegistry()
	r := bestiary()[0] // goblin, hp 10

	// AND: the failing first condition must hide the passing second one.
	and := NewGroup(And,
		NewCondition("hp", OpGt, record.Int(100)),
		NewCondition("name", OpContains, record.String("go")),
	)
	if and.Evaluate(reg, r) {
		t.Error("AND group with failing condition should evaluate false")
	}

	// OR: the passing first condition decides.
	or := NewGroup(Or,
		NewCondition("name", OpContains, record.String("go")),
		NewCondition("hp", OpGt, record.Int(100)),
	)
	if !or.Evaluate(reg, r) {
		t.Error("OR group with passing condition should evaluate true")
	}
}
